package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// FilesystemOutput dumps full HTTP exchanges to numbered files in a
// directory. It is a debugging side channel, nothing reads the files
// back.
type FilesystemOutput struct {
	directory string
	counter   *uint64
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	var counter uint64
	return FilesystemOutput{directory: dir, counter: &counter}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// AttachTo registers an after-response hook on the client that writes
// every exchange out. Errors never reach the caller, a broken dump
// must not break a scrape.
func (o FilesystemOutput) AttachTo(client *resty.Client) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(o.counter, 1), 10)
		o.Write(id, formatHttpMessage(res))
		return nil
	})
}
