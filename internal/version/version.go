// Package version хранит сведения о сборке, заданные через -ldflags:
//
//	-X github.com/vladislavdragonenkov/ordercore/internal/version.version=v1.2.3
//	-X github.com/vladislavdragonenkov/ordercore/internal/version.commit=$(git rev-parse HEAD)
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

const shortCommitLen = 7

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хэш коммита.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// ShortCommit возвращает первые 7 символов хэша коммита.
func ShortCommit() string {
	if len(commit) > shortCommitLen {
		return commit[:shortCommitLen]
	}
	return commit
}

// String форматирует сведения для вывода по флагу -version.
func String(service string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", service, version, ShortCommit(), date)
}

// Fields возвращает сведения о сборке для стартовой записи в лог.
func Fields() log.Fields {
	return log.Fields{"version": version, "commit": ShortCommit(), "build_date": date}
}
