package driver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/olake-salesforce/types"
)

func TestListSObjects(t *testing.T) {
	fake := newFakeSalesforce(t)
	fake.handle(http.MethodGet, dataPath("sobjects"), func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sobjects": []map[string]any{
			{"name": "Account", "queryable": true, "retrieveable": true, "replicateable": true},
			{"name": "Contact", "queryable": true, "retrieveable": true, "replicateable": true},
			{"name": "AccountChangeEvent", "queryable": true, "retrieveable": true},
			{"name": "Order_Shipped__e", "queryable": true, "retrieveable": true},
			{"name": "FeedItem", "queryable": false, "retrieveable": true},
			{"name": "Lead", "queryable": true, "retrieveable": true},
		}})
	})
	client := fake.client(fake.config())

	names, err := listSObjects(context.Background(), client, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Contact", "Lead"}, names)

	names, err = listSObjects(context.Background(), client, []string{"Lead", "Account", "Missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Lead"}, names)
}

func TestStreamFromDescribe(t *testing.T) {
	describe := describeSObject{Name: "Account", Replicateable: true}
	for _, field := range []struct{ name, typ string }{
		{"Id", "id"},
		{"Name", "string"},
		{"OwnerId", "reference"},
		{"AnnualRevenue", "currency"},
		{"NumberOfEmployees", "int"},
		{"IsDeleted", "boolean"},
		{"BillingAddress", "address"},
		{"CreatedDate", "datetime"},
		{"SystemModstamp", "datetime"},
		{"Custom__c", "complexvalue"},
	} {
		describe.Fields = append(describe.Fields, struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}{Name: field.name, Type: field.typ})
	}

	stream := streamFromDescribe(describe, types.BulkMode)

	assert.Equal(t, "Account", stream.Name)
	assert.Equal(t, types.BulkMode, stream.ExtractionMode)
	assert.Equal(t, "SystemModstamp", stream.ReplicationKey)
	assert.True(t, stream.SupportsDeleted)

	expected := map[string]types.FieldType{
		"Id":                types.Reference,
		"OwnerId":           types.Reference,
		"AnnualRevenue":     types.Number,
		"NumberOfEmployees": types.Integer,
		"BillingAddress":    types.Composite,
		"CreatedDate":       types.DateTime,
		"Custom__c":         types.Unknown,
	}
	for name, typ := range expected {
		field, found := stream.Field(name)
		require.True(t, found, name)
		assert.Equal(t, typ, field.Type, name)
		assert.True(t, field.Selected, name)
	}

	field, _ := stream.Field("Custom__c")
	assert.Equal(t, "complexvalue", field.SourceType)
}

func TestStreamFromDescribeReplicationKeyFallback(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{name: "last modified", fields: map[string]string{"LastModifiedDate": "datetime", "CreatedDate": "datetime"}, want: "LastModifiedDate"},
		{name: "created only", fields: map[string]string{"CreatedDate": "datetime"}, want: "CreatedDate"},
		{name: "no date columns", fields: map[string]string{"Name": "string"}, want: ""},
		{name: "key with the wrong type", fields: map[string]string{"SystemModstamp": "string"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			describe := describeSObject{Name: "Thing__c"}
			for name, typ := range tt.fields {
				describe.Fields = append(describe.Fields, struct {
					Name string `json:"name"`
					Type string `json:"type"`
				}{Name: name, Type: typ})
			}

			stream := streamFromDescribe(describe, types.RestMode)
			assert.Equal(t, tt.want, stream.ReplicationKey)
			assert.False(t, stream.SupportsDeleted)
		})
	}
}
