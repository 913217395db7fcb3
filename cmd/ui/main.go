package main

import (
	"time"

	"yolodetect/internal/client"
	"yolodetect/internal/config"
	"yolodetect/internal/ui"
	"yolodetect/internal/ui/session"
)

func main() {
	cfg := config.LoadClient()

	api := client.New(cfg.APIURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	s := session.New(api, cfg.OutputDir)

	ui.CreateApp(s, cfg).Run()
}
