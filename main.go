package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"leadagent/app/client/embedding"
	"leadagent/app/client/knowledge"
	"leadagent/app/client/llm"
	"leadagent/app/config"
	"leadagent/app/server"
	"leadagent/app/service/catalog"
	"leadagent/app/service/checkpoint"
	"leadagent/app/service/conversation"
	"leadagent/app/service/database"
	"leadagent/app/service/extraction"
	"leadagent/app/service/leads"
	"leadagent/app/service/notify"
	"leadagent/app/service/qualification"
	"leadagent/app/service/sessionlock"
	"leadagent/app/service/strategy"
	"leadagent/app/service/tracing"
	"leadagent/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, tracing.New)
	do.Provide(di, database.New)
	do.Provide(di, sessionlock.New)
	do.Provide(di, llm.NewClient)
	do.Provide(di, embedding.NewClient)
	do.Provide(di, knowledge.NewClient)
	do.Provide(di, catalog.New)
	do.Provide(di, checkpoint.New)
	do.Provide(di, leads.New)
	do.Provide(di, extraction.New)
	do.Provide(di, qualification.New)
	do.Provide(di, strategy.New)
	do.Provide(di, notify.New)
	do.Provide(di, notify.NewWorker)
	do.Provide(di, conversation.New)
	do.Provide(di, server.New)

	do.MustInvoke[*tracing.Service](di)

	if err = do.MustInvoke[*catalog.Service](di).SeedDefaults(appCtx); err != nil {
		log.Fatalf("catalog seed failed: %v", err)
	}

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go do.MustInvoke[*notify.Worker](di).Run(appCtx)
	go do.MustInvoke[*server.Server](di).Run(appCtx)

	<-appCtx.Done()
}
