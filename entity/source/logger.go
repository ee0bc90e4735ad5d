package source

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "source")
