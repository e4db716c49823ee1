// Package buildinfo exposes the application's embedded name, description and
// build stamp.
package buildinfo

import (
	_ "embed"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// AppInfo provides static data about the running application
type AppInfo struct {
	buildInfo

	ExePath string `yaml:"-"`

	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	ReverseDNS      string `yaml:"reverse_dns"`
	Vendor          string `yaml:"vendor"`
	Description     string `yaml:"description"`
	FullDescription string `yaml:"full_description"`
}

type buildInfo struct {
	Version    string    `yaml:"version"`
	CommitHash string    `yaml:"commit_hash"`
	BuildTime  time.Time `yaml:"build_time"`
}

var App AppInfo
var All string

//go:embed app.yml
var app []byte

// replaced by release builds
//
//go:embed build.yml
var build []byte

func init() {
	var err error

	App.ExePath, err = os.Executable()
	if err != nil {
		log.Fatal().Err(err).Msg("unable to determine executable pathname")
	}

	err = yaml.Unmarshal(app, &App)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to parse embedded app info")
	}

	err = yaml.Unmarshal(build, &App.buildInfo)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to parse embedded build info")
	}

	fillFromModule(&App.buildInfo)

	All = fmt.Sprintf("%s (%s at %s)", App.Version, App.CommitHash, App.BuildTime.Format(time.RFC3339))
}

// fillFromModule uses the VCS stamp from `go build` for development builds.
func fillFromModule(bi *buildInfo) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if bi.CommitHash == "unknown" {
				bi.CommitHash = setting.Value
			}
		case "vcs.time":
			if bi.BuildTime.IsZero() || bi.BuildTime.Unix() == 0 {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					bi.BuildTime = t
				}
			}
		}
	}
}
