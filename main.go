package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"klinechart/app"
	"klinechart/config"
	"klinechart/utils/log"
)

func main() {
	// 1) 설정
	cfgPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2) 인스턴스 생성
	klinechart, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// 3) OS 시그널이 오면 ctx 종료 (Graceful Stop)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4) Run : 웹서버가 끝날 때까지 block
	if err := klinechart.Run(ctx); err != nil {
		log.Errorf("klinechart stopped with error: %v", err)
		os.Exit(1)
	}
	log.Infof("Shutdown complete.")
}
