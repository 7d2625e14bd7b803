package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/cli/cmd"
)

// Version information, injected at build time via -ldflags
var (
	version   string
	gitCommit string
	buildDate string
)

func main() {
	cmd.Version = version
	cmd.GitCommit = gitCommit
	cmd.BuildDate = buildDate

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := cmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
