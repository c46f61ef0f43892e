// utils/bucket_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitBucketUnconfiguredIsDisabled(t *testing.T) {
	require.NoError(t, InitBucket("", "", "", "", ""))

	_, err := NewStorageClient(ProviderBucket, "")
	assert.Error(t, err, "unconfigured bucket provider must refuse clients")
}

func TestInitBucketRejectsPartialConfig(t *testing.T) {
	cases := []struct {
		name                           string
		accountID, key, secret, bucket string
	}{
		{"missing credentials", "acct", "", "", "junk"},
		{"missing secret", "acct", "key", "", "junk"},
		{"missing bucket", "acct", "key", "secret", ""},
		{"missing account", "", "key", "secret", "junk"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, InitBucket(tc.accountID, tc.key, tc.secret, tc.bucket, "cleanup/"))
		})
	}
}
