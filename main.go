package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"auralytics/agent"
	"auralytics/config"
	"auralytics/dbpool"
	"auralytics/export"
	"auralytics/logger"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapOperationError("load config", err)
	}

	log := logger.NewLogger()
	if cfg.LogDir != "" {
		if err := log.Init(cfg.LogDir); err != nil {
			return WrapOperationError("init logger", err)
		}
		defer log.Close()
	}

	logFunc := func(string) {}
	if cfg.DetailedLog {
		logFunc = log.Log
	}

	engine := dbpool.Engine(cfg.Store.Engine)
	pool := dbpool.New(engine, log.Log)
	db, err := pool.OpenReadOnly(cfg.Store.DSN)
	if err != nil {
		return WrapOperationError("open analytics store", err)
	}
	defer db.Close()

	gateway, err := agent.NewGateway(cfg, logFunc)
	if err != nil {
		return WrapOperationError("build LLM gateway", err)
	}

	service := agent.NewService(
		gateway,
		agent.NewSQLExecutor(db, logFunc),
		export.NewExcelBuilder(logFunc),
		engine,
		cfg.MaxToolIterations,
		logFunc,
	)

	server := NewServer(service, cfg, log)
	return WrapOperationError("run HTTP server", server.Run())
}
