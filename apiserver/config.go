package main

// nolint: lll
import (
	flowstatesRedis "github.com/trackdle/trackdle/apiserver/internal/authn/flowstates/redis"
	authnOIDC "github.com/trackdle/trackdle/apiserver/internal/authn/oidc"
	authnREST "github.com/trackdle/trackdle/apiserver/internal/authn/rest"
	"github.com/trackdle/trackdle/apiserver/internal/authn/sessions"
	sessionsMongodb "github.com/trackdle/trackdle/apiserver/internal/authn/sessions/mongodb"
	sessionsRedis "github.com/trackdle/trackdle/apiserver/internal/authn/sessions/redis"
	usersMongodb "github.com/trackdle/trackdle/apiserver/internal/authn/users/mongodb"
	"github.com/trackdle/trackdle/apiserver/internal/lib/crypto"
	"github.com/trackdle/trackdle/apiserver/internal/lib/mongodb"
	"github.com/trackdle/trackdle/apiserver/internal/lib/oidc"
	"github.com/trackdle/trackdle/apiserver/internal/lib/redis"
	"github.com/trackdle/trackdle/apiserver/internal/lib/restmachinery"
	"github.com/trackdle/trackdle/apiserver/internal/lib/restmachinery/authn"
)

func getAPIServerFromEnvironment() (restmachinery.Server, error) {

	// API server config
	apiConfig, err := restmachinery.GetConfigFromEnvironment()
	if err != nil {
		return nil, err
	}

	// Common
	database, err := mongodb.Database()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis.Client()
	if err != nil {
		return nil, err
	}
	codec, err := crypto.GetCodecFromEnvironment()
	if err != nil {
		return nil, err
	}

	// Sessions-- the whole show
	sessionsConfig, err := sessions.GetConfigFromEnvironment()
	if err != nil {
		return nil, err
	}
	oauth2Config, oidcIdentityVerifier, err :=
		oidc.GetConfigAndVerifierFromEnvironment()
	if err != nil {
		return nil, err
	}
	durableSessionsStore, err := sessionsMongodb.NewStore(database)
	if err != nil {
		return nil, err
	}
	sessionsStore := sessions.NewStore(
		durableSessionsStore,
		sessionsRedis.NewStore(redisClient),
		codec,
		sessionsConfig.SessionTTL(),
	)
	usersStore, err := usersMongodb.NewStore(database)
	if err != nil {
		return nil, err
	}
	sessionsService := sessions.NewService(
		sessionsStore,
		flowstatesRedis.NewStore(redisClient, sessionsConfig.FlowStateTTL()),
		usersStore,
		authnOIDC.NewClient(
			oauth2Config,
			oidcIdentityVerifier,
			sessionsConfig.IdentityProviderTimeout(),
		),
	)

	baseEndpoints := &restmachinery.BaseEndpoints{
		SessionAuthFilter: authn.NewSessionAuthFilter(
			sessionsService.Get,
			sessionsService.Touch,
			sessionsService.Delete,
		),
	}

	return restmachinery.NewServer(
		apiConfig,
		baseEndpoints,
		[]restmachinery.Endpoints{
			authnREST.NewAuthEndpoints(baseEndpoints, sessionsService),
		},
	), nil
}
