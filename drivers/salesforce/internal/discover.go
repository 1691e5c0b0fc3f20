package driver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/datazip-inc/olake-salesforce/types"
)

// replication keys in order of preference
var replicationKeys = []string{"SystemModstamp", "LastModifiedDate", "CreatedDate"}

var sfTypeToFieldType = map[string]types.FieldType{
	"id":              types.Reference,
	"reference":       types.Reference,
	"string":          types.String,
	"picklist":        types.String,
	"multipicklist":   types.String,
	"combobox":        types.String,
	"textarea":        types.String,
	"email":           types.String,
	"phone":           types.String,
	"url":             types.String,
	"encryptedstring": types.String,
	"base64":          types.String,
	"time":            types.String,
	"boolean":         types.Boolean,
	"int":             types.Integer,
	"long":            types.Integer,
	"double":          types.Number,
	"currency":        types.Number,
	"percent":         types.Number,
	"date":            types.Date,
	"datetime":        types.DateTime,
	"address":         types.Composite,
	"location":        types.Composite,
	"anyType":         types.Unknown,
}

type sObjectSummary struct {
	Name          string `json:"name"`
	Queryable     bool   `json:"queryable"`
	Retrieveable  bool   `json:"retrieveable"`
	Replicateable bool   `json:"replicateable"`
}

type describeGlobal struct {
	SObjects []sObjectSummary `json:"sobjects"`
}

type describeSObject struct {
	Name          string `json:"name"`
	Replicateable bool   `json:"replicateable"`
	Fields        []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

// listSObjects returns every object the extraction can query, filtered to
// allowed when it is non-empty
func listSObjects(ctx context.Context, client *Client, allowed []string) ([]string, error) {
	var global describeGlobal
	if err := client.JSON(ctx, Request{Method: http.MethodGet, Path: client.DataPath("sobjects"), Surface: "discover"}, &global); err != nil {
		return nil, fmt.Errorf("failed to list sobjects: %w", err)
	}

	filter := types.NewSet(allowed...)
	names := make([]string, 0, len(global.SObjects))
	for _, sobject := range global.SObjects {
		if !sobject.Queryable || !sobject.Retrieveable {
			continue
		}
		// change data capture and platform events are not queryable history
		if strings.HasSuffix(sobject.Name, "ChangeEvent") || strings.HasSuffix(sobject.Name, "__e") {
			continue
		}
		if filter.Len() > 0 && !filter.Exists(sobject.Name) {
			continue
		}
		names = append(names, sobject.Name)
	}

	return names, nil
}

func describeStream(ctx context.Context, client *Client, name string, mode types.ExtractionMode) (*types.Stream, error) {
	var describe describeSObject
	if err := client.JSON(ctx, Request{Method: http.MethodGet, Path: client.DataPath("sobjects", name, "describe"), Surface: "discover"}, &describe); err != nil {
		return nil, fmt.Errorf("failed to describe sobject[%s]: %w", name, err)
	}

	return streamFromDescribe(describe, mode), nil
}

func streamFromDescribe(describe describeSObject, mode types.ExtractionMode) *types.Stream {
	stream := types.NewStream(describe.Name, mode)
	hasIsDeleted := false
	for _, field := range describe.Fields {
		typ, found := sfTypeToFieldType[field.Type]
		if !found {
			typ = types.Unknown
		}
		stream.UpsertField(field.Name, typ, true)
		if discovered, found := stream.Field(field.Name); found {
			discovered.SourceType = field.Type
		}
		hasIsDeleted = hasIsDeleted || field.Name == "IsDeleted"
	}

	for _, key := range replicationKeys {
		if field, found := stream.Field(key); found && (field.Type == types.DateTime || field.Type == types.Date) {
			stream.WithReplicationKey(key)
			break
		}
	}
	stream.SupportsDeleted = describe.Replicateable && hasIsDeleted

	return stream
}
