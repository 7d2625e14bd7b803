package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBlockRange(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantStart int64
		wantEnd   int64
		wantErr   bool
	}{
		{name: "plain", content: "11814407,11820923", wantStart: 11814407, wantEnd: 11820923},
		{name: "trailing newline", content: "0,100\n", wantStart: 0, wantEnd: 100},
		{name: "spaces around values", content: " 5 , 10 ", wantStart: 5, wantEnd: 10},
		{name: "missing comma", content: "123", wantErr: true},
		{name: "too many fields", content: "1,2,3", wantErr: true},
		{name: "non numeric", content: "a,b", wantErr: true},
		{name: "empty", content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "blocks_meta.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			start, end, err := ReadBlockRange(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestReadBlockRangeMissingFile(t *testing.T) {
	_, _, err := ReadBlockRange(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestCLIExtractorDefaultsBinary(t *testing.T) {
	assert.Equal(t, "ethereumetl", NewCLIExtractor("").Bin)
	assert.Equal(t, "/opt/etl/bin/ethereumetl", NewCLIExtractor("/opt/etl/bin/ethereumetl").Bin)
}
