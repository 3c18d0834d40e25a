// Package main выпускает подписанный токен доступа для локальной разработки.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/soscafe-admin/internal/middleware"
)

type options struct {
	Secret string `env:"AUTH_SECRET"`
}

func main() {
	opts := options{}
	if err := env.Parse(&opts); err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %v\n", err)
		os.Exit(1)
	}

	secret := flag.String("k", opts.Secret, "HMAC secret (defaults to AUTH_SECRET)")
	userID := flag.String("u", "", "user id placed in the sub claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" || *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := middleware.NewAuthMiddleware(*secret).IssueToken(*userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
