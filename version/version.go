// Package version holds build version strings, set at link time:
//
//	go build -ldflags "-X github.com/jackzampolin/examscan/version.GitRelease=v0.1.0 \
//	  -X github.com/jackzampolin/examscan/version.GitCommit=$(git rev-parse HEAD) \
//	  -X github.com/jackzampolin/examscan/version.GitCommitDate=$(git log -1 --format=%cI)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	GitRelease    = "dev"
	GitCommit     = ""
	GitCommitDate = ""

	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)

func init() {
	if GitCommit != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			GitCommit = s.Value
		case "vcs.time":
			GitCommitDate = s.Value
		}
	}
}
