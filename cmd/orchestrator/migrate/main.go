package main

import (
	"context"
	"flag"
	"log"

	"github.com/stablerelay/transfer-middleware/pkg/config"
	"github.com/stablerelay/transfer-middleware/pkg/jobstore"
	"github.com/stablerelay/transfer-middleware/pkg/pgutil"
	mghelper "github.com/stablerelay/transfer-middleware/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	if len(flag.Args()) != 1 || flag.Args()[0] != "init" {
		mghelper.Usage()
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Creating schema for transfer database (%s)...\n", cfg.Database.Database)

	if err := mghelper.CreateSchema(context.Background(), db, (*jobstore.JobDao)(nil)); err != nil {
		mghelper.Exitf(err.Error())
	}
}
