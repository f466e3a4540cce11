package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/clients/discord"
	"github.com/mcdev12/standup/go/internal/config"
	"github.com/mcdev12/standup/go/internal/standup/auth"
	"github.com/mcdev12/standup/go/internal/standup/feed"
	"github.com/mcdev12/standup/go/internal/standup/gateway"
	"github.com/mcdev12/standup/go/internal/standup/spa"
)

type Services struct {
	Discord *discord.Client
	Token   *auth.TokenHandler
	Gateway *gateway.Service
	Feed    *feed.Feed
	App     *spa.Handler
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Discord client → token handler / gateway validator; feed → gateway notifier

	discordClient := discord.NewClient(discord.Config{
		APIURL:       cfg.Discord.APIURL,
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		BotToken:     cfg.Discord.BotToken,
	})

	publisher, err := setupPublisher(ctx, cfg.Feed)
	if err != nil {
		return nil, err
	}
	sessionFeed := feed.New(publisher, feed.Config{
		BufferSize:     cfg.Feed.BufferSize,
		PublishTimeout: feed.DefaultConfig().PublishTimeout,
	})

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.LeadIn = cfg.Standup.LeadIn
	gatewayConfig.DefaultDuration = cfg.Standup.DefaultDuration
	gatewayConfig.ConnectionConfig.ValidateTimeout = cfg.Standup.ValidateTimeout
	gatewayService := gateway.NewService(gatewayConfig, discordClient, sessionFeed, nil)

	return &Services{
		Discord: discordClient,
		Token:   auth.NewTokenHandler(discordClient, discordClient),
		Gateway: gatewayService,
		Feed:    sessionFeed,
		App:     spa.NewHandler(cfg.StaticDir),
	}, nil
}

func setupPublisher(ctx context.Context, cfg config.FeedConfig) (feed.Publisher, error) {
	if cfg.NATSURL == "" {
		log.Info().Msg("NATS_URL not set, session feed goes to the log")
		return feed.LogPublisher{}, nil
	}

	jsConfig := feed.DefaultJetStreamConfig()
	jsConfig.URL = cfg.NATSURL
	jsConfig.StreamName = cfg.Stream
	jsConfig.SubjectPrefix = cfg.SubjectPrefix

	publisher, err := feed.NewJetStreamPublisher(ctx, jsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed publisher: %w", err)
	}
	log.Info().
		Str("nats_url", cfg.NATSURL).
		Str("stream", cfg.Stream).
		Msg("session feed publishing to JetStream")
	return publisher, nil
}

// Start runs the gateway hub and the feed worker; the channel closes once both stop
func (s *Services) Start(ctx context.Context) <-chan struct{} {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("standup gateway failed")
		}
	}()
	go func() {
		defer wg.Done()
		s.Feed.Run(ctx)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (s *Services) Close() {
	if err := s.Feed.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close feed publisher")
	}
}
