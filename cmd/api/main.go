package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/noaione/klibrarian/internal/config"
	appHTTP "github.com/noaione/klibrarian/internal/handler/http"
	"github.com/noaione/klibrarian/internal/pkg/database"
	"github.com/noaione/klibrarian/internal/pkg/komga"
	"github.com/noaione/klibrarian/internal/pkg/navidrome"
	"github.com/noaione/klibrarian/internal/repository/postgresql"
	inviteService "github.com/noaione/klibrarian/internal/service/invite"
)

const version = "0.4.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	ctx := context.Background()

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		log.Fatal("Error connecting to database: ", err)
	}

	inviteRepo := postgresql.NewInviteRepository(db)
	if err := inviteRepo.Initialize(ctx); err != nil {
		log.Fatal("Error setting up database: ", err)
	}

	komgaClient := komga.NewClient(cfg.Komga.Host, cfg.Komga.Username, cfg.Komga.Password)
	me, err := komgaClient.GetMe(ctx)
	if err != nil {
		log.Fatal("Failed to connect to Komga: ", err)
	}
	if !me.IsAdmin() {
		log.Fatal("Provided Komga user is not an ADMIN, please use an account with admin privilege")
	}

	var navidromeAPI inviteService.NavidromeAPI
	if cfg.Navidrome != nil {
		navidromeClient, err := navidrome.NewClient(ctx, cfg.Navidrome.Host, cfg.Navidrome.Username, cfg.Navidrome.Password)
		if err != nil {
			log.Fatal("Failed to connect to Navidrome: ", err)
		}
		if !navidromeClient.IsAdmin() {
			log.Fatal("Provided Navidrome user is not an ADMIN, please use an account with admin privilege")
		}
		navidromeAPI = navidromeClient
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("app", "k-librarian"),
	)

	invitesService := inviteService.NewInviteService(
		logger,
		inviteRepo,
		komgaClient,
		navidromeAPI,
		cfg.KomgaHostname(),
		cfg.NavidromeHostname(),
		version,
	)

	authHandler := appHTTP.NewAuthHandler(cfg.App.Token)
	inviteHandler := appHTTP.NewInviteHandler(invitesService)

	router := appHTTP.NewRouter(cfg.App.Token, cfg.App.Env, version, authHandler, inviteHandler)

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	fmt.Printf("K-Librarian v%s running at http://%s\n", version, addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
