// Command queueworker processes, receives, awaits and sends queue messages
// through a worker with the forward strategy installed.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/miladsoleymani/queueworker/config"
	"github.com/miladsoleymani/queueworker/core"

	_ "github.com/miladsoleymani/queueworker/plugins/kafka"
	_ "github.com/miladsoleymani/queueworker/plugins/nats"
	_ "github.com/miladsoleymani/queueworker/plugins/postgres"
	_ "github.com/miladsoleymani/queueworker/plugins/pubsub"
	_ "github.com/miladsoleymani/queueworker/plugins/rabbitmq"
	_ "github.com/miladsoleymani/queueworker/plugins/redis"
	_ "github.com/miladsoleymani/queueworker/plugins/sqs"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fail(err)
	}

	if err := newApp(cfg, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fail(err)
	}
}

func fail(err error) {
	log.Debug().Err(err).Msg("command failed")
	fmt.Fprintf(os.Stderr, "error[%s]: %v\n", core.Classify(err), err)
	os.Exit(1)
}
