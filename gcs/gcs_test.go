package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	testData := map[string]struct {
		uri    string
		bucket string
		prefix string
		err    error
	}{
		"bucket and prefix": {
			uri:    "gs://my-models/timesfm/2.0",
			bucket: "my-models",
			prefix: "timesfm/2.0",
		},
		"bucket only": {
			uri:    "gs://my-models",
			bucket: "my-models",
			prefix: "",
		},
		"trailing slash": {
			uri:    "gs://my-models/timesfm/",
			bucket: "my-models",
			prefix: "timesfm/",
		},
		"http scheme": {
			uri: "https://my-models/timesfm",
			err: ErrNotGSURI,
		},
		"no scheme": {
			uri: "my-models/timesfm",
			err: ErrNotGSURI,
		},
		"no bucket": {
			uri: "gs:///timesfm",
			err: ErrEmptyBucket,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			bucket, prefix, err := ParseURI(td.uri)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.bucket, bucket)
			assert.Equal(t, td.prefix, prefix)
		})
	}
}
