// Package version хранит данные сборки, подставляемые через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0"
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию для /healthz.
func GetVersion() string { return version }

// Fields возвращает данные сборки для стартового лога.
func Fields() log.Fields {
	return log.Fields{"version": version, "commit": commit, "build_date": date}
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
