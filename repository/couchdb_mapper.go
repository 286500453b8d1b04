package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-resty/resty/v2"
)

/**
* Object Mapper (from couchdb resty response to object based on the database name)
**/

func MapToObject(resp interface{}, obj interface{}) error {
	data, err := responseBody(resp)
	if err != nil {
		return err
	}

	// Check if obj is a pointer to a struct
	val := reflect.ValueOf(obj)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return errors.New("obj is not a pointer to a struct")
	}

	if uErr := json.Unmarshal(data, obj); uErr != nil {
		return fmt.Errorf("%s cannot be mapped to the given object", data)
	}
	return nil
}

// MapFindResponse unmarshals the docs of a mango _find response into out,
// which must be a pointer to a FindResponse[T]-shaped struct.
func MapFindResponse(resp interface{}, out interface{}) error {
	data, err := responseBody(resp)
	if err != nil {
		return err
	}
	if uErr := json.Unmarshal(data, out); uErr != nil {
		return fmt.Errorf("%s cannot be mapped to a find response", data)
	}
	return nil
}

func responseBody(resp interface{}) ([]byte, error) {
	switch r := resp.(type) {
	case *resty.Response:
		return r.Body(), nil
	case []byte:
		return r, nil
	case json.RawMessage:
		return r, nil
	}
	return nil, errors.New("resp is not a resty.Response")
}
