package main

import (
	"flag"
	"fmt"
	"log"

	"proctor-sync/internal/config"
	"proctor-sync/internal/sso"
)

func main() {
	var (
		user = flag.String("user", "", "user identifier (email) to encode")
		form = flag.Bool("form", false, "print the full hand-off form instead of the payload")
	)
	flag.Parse()
	if *user == "" {
		log.Fatal("usage: ssoencode -user someone@example.edu [-form]")
	}

	cfg := config.Load()
	if cfg.SSOKey == "" || cfg.SSOIV == "" {
		log.Fatal("missing env: EXAMITY_SSO_KEY / EXAMITY_SSO_IV")
	}

	payload, err := sso.Encode(*user, cfg.SSOKey, cfg.SSOIV)
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	if !*form {
		fmt.Println(payload)
		return
	}
	html, err := sso.RenderForm(cfg.SSOURL, payload)
	if err != nil {
		log.Fatalf("render: %v", err)
	}
	fmt.Println(html)
}
