package services

import (
	"github.com/sigilo/go-sigilo-server/testutil"
)

// the in-memory doubles live in testutil, shared with the queue and api
// suites
type (
	memSelector  = testutil.MemSelector
	memArtifacts = testutil.MemArtifacts
	stubRenderer = testutil.StubRenderer
)

func newMemSelector() *memSelector {
	return testutil.NewMemSelector()
}

func newMemArtifacts() *memArtifacts {
	return testutil.NewMemArtifacts()
}

func newStubRenderer() *stubRenderer {
	return testutil.NewStubRenderer()
}
