package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-kit/log/level"
	"github.com/sigilo/go-sigilo-server/email"
	mailgunhandler "github.com/sigilo/go-sigilo-server/email/mailgun"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/queue"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/render/pdf"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/types"
)

// Register external modules that implement the email handler
func RegisterEmailHandlers(conf *global.Config) {
	if conf.Mail.Provider == "mailgun" {
		handler := mailgunhandler.NewHandler(conf.Mail.Domain, conf.Mail.SendApiKey, conf.Mail.FromAddress)
		email.RegisterHandler(conf.Mail.Provider, handler)
	}
	level.Info(global.Logger).Log("msg", "registered email handlers", "handlers", strings.Join(email.Handlers(), ","))
}

// Register the document renderers (currently only pdf)
func RegisterRenderers() {
	render.RegisterRenderer("pdf", pdf.NewHandler())
}

// Configure DB Repositories and create DB Selector
func ConfigDBSelector() repository.DBSelector {
	// configure Repository (couchDB)
	repoUrl := global.Conf.CouchDB.Scheme + "://" + global.Conf.CouchDB.Host + ":" + strconv.Itoa(global.Conf.CouchDB.Port)
	keyPairRepo, keyPairErr := repository.NewCouchDBRepository(repoUrl, repository.KeyPair, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	itemRepo, itemErr := repository.NewCouchDBRepository(repoUrl, repository.SignableItem, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	signerRepo, signerErr := repository.NewCouchDBRepository(repoUrl, repository.Signer, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	signatureRepo, signatureErr := repository.NewCouchDBRepository(repoUrl, repository.Signature, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	certRepo, certErr := repository.NewCouchDBRepository(repoUrl, repository.Certificate, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	batchRepo, batchErr := repository.NewCouchDBRepository(repoUrl, repository.IssuanceBatch, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)

	repoErr := errors.Join(keyPairErr, itemErr, signerErr, signatureErr, certErr, batchErr)
	if repoErr != nil {
		level.Error(global.Logger).Log("msg", "failed to create repositories", "err", repoErr)
		panic(repoErr)
	}

	// REPOSITORY definitions
	dbSelector := repository.NewCouchDBSelector()
	dbSelector.AddDB(keyPairRepo)
	dbSelector.AddDB(itemRepo)
	dbSelector.AddDB(signerRepo)
	dbSelector.AddDB(signatureRepo)
	dbSelector.AddDB(certRepo)
	dbSelector.AddDB(batchRepo)

	return dbSelector
}

func ConfigDBIndexing(dbSelector *repository.CouchDBSelector) {
	signerRepo, sErr := dbSelector.ChooseDB(repository.Signer)
	if sErr != nil {
		panic(sErr)
	}
	signatureRepo, sigErr := dbSelector.ChooseDB(repository.Signature)
	if sigErr != nil {
		panic(sigErr)
	}
	certRepo, cErr := dbSelector.ChooseDB(repository.Certificate)
	if cErr != nil {
		panic(cErr)
	}

	idxErr := errors.Join(
		repository.CreateItemIDIndex(signerRepo),
		repository.CreateItemIDIndex(signatureRepo),
		repository.CreateBatchIDIndex(certRepo),
		repository.CreateDeliveryStatusIndex(certRepo),
	)
	if idxErr != nil {
		level.Error(global.Logger).Log("msg", "failed to create indexes", "err", idxErr)
		panic(idxErr)
	}
}

// ConfigDeliveryRetry sweeps failed deliveries back into the queue while
// they still have retry budget
func ConfigDeliveryRetry(dbSelector *repository.CouchDBSelector, env *types.Environment, taskQueue *queue.TaskQueue) {
	deliveryService := services.NewDeliveryService(dbSelector)
	sweep := func() {
		ctx := context.Background()
		retryable, err := deliveryService.ListRetryable(global.Conf.Delivery.MaxAttempts)
		if err != nil {
			level.Error(global.Logger).Log("msg", "delivery retry sweep failed", "err", err)
			return
		}
		for _, cert := range retryable {
			if eErr := taskQueue.EnqueueDispatch(ctx, cert.ID); eErr != nil {
				level.Error(global.Logger).Log("msg", "failed to re-enqueue delivery", "certificate", cert.ID, "err", eErr)
			}
		}
	}
	env.Cron.AddFunc(fmt.Sprintf("@every %dm", global.Conf.Delivery.RetrySweepMinutes), sweep)
	env.Cron.Start()
}

func ConfigS3Storage(conf *global.Config, env *types.Environment) {
	// configure S3 storage
	credentials := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(conf.Storage.Key, conf.Storage.Secret, ""))
	awsConf, err := config.LoadDefaultConfig(context.TODO(), config.WithCredentialsProvider(credentials), config.WithRegion(conf.Storage.Region))
	if err != nil {
		panic(err)
	}
	s3Client := s3.NewFromConfig(awsConf)
	uploader := manager.NewUploader(s3Client)
	downloader := manager.NewDownloader(s3Client)
	env.AddS3Uploader(uploader)
	env.AddS3Downloader(downloader)

	env.S3Client = s3Client
}
