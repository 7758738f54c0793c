package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teerapap/storeflow/agent/contract"
	"github.com/teerapap/storeflow/agent/orchestrator"
	"github.com/teerapap/storeflow/agent/planner"
	statex "github.com/teerapap/storeflow/agent/state"
	toolx "github.com/teerapap/storeflow/agent/tool"
	"github.com/teerapap/storeflow/browser"
	configx "github.com/teerapap/storeflow/pkg/config"
	_ "github.com/teerapap/storeflow/pkg/logger/autoload"
	openrouterx "github.com/teerapap/storeflow/pkg/openrouter"
	qstashx "github.com/teerapap/storeflow/pkg/qstash"
	"github.com/teerapap/storeflow/store"
	"github.com/teerapap/storeflow/vector"
)

type AppConfig struct {
	CustomerID       string `envconfig:"CUSTOMER_ID" required:"true"`
	ThreadID         string `envconfig:"THREAD_ID"`
	CheckoutNotifyTo string `envconfig:"CHECKOUT_NOTIFY_TO"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	threadID := appCfg.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	productStore, err := store.New(*configx.MustNew[store.Config]("POSTGRES"))
	if err != nil {
		log.Fatal().Err(err).Msg("open product store")
	}
	defer productStore.Close()

	embedder, err := vector.NewOpenAIEmbedder(*configx.MustNew[vector.OpenAIEmbedderConfig]("OPENAI"))
	if err != nil {
		log.Fatal().Err(err).Msg("build embedder")
	}
	pinecone, err := vector.NewPineconeClient(*configx.MustNew[vector.PineconeConfig]("PINECONE"))
	if err != nil {
		log.Fatal().Err(err).Msg("build pinecone client")
	}
	faq, err := vector.NewIndex(embedder, pinecone)
	if err != nil {
		log.Fatal().Err(err).Msg("build faq index")
	}

	cart, err := browser.NewClient(*configx.MustNew[browser.Config]("BROWSER"))
	if err != nil {
		log.Fatal().Err(err).Msg("build cart client")
	}

	deps := toolx.Deps{
		Store:     productStore,
		FAQ:       faq,
		Cart:      cart,
		NotifyURL: appCfg.CheckoutNotifyTo,
	}
	if appCfg.CheckoutNotifyTo != "" {
		deps.Notifier = qstashx.MustNew(*configx.MustNew[qstashx.Config]("QSTASH"))
	}
	registry, err := toolx.BuildRegistry(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("build tool registry")
	}

	chatModel, err := configx.MustNew[openrouterx.Config]("OPENROUTER").New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build chat model")
	}
	plan, err := planner.New(ctx, chatModel, registry.Infos())
	if err != nil {
		log.Fatal().Err(err).Msg("build planner")
	}

	var checkpoints statex.Store
	if stateCfg, err := configx.New[statex.UpstashRedisConfig]("STATE"); err == nil {
		checkpoints, err = statex.NewUpstashRedisStore(*stateCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build upstash state store")
		}
	} else {
		log.Warn().Msg("STATE_* not configured, conversation state is in-memory only")
		checkpoints = statex.NewMemoryStore()
	}

	agent, err := orchestrator.New(checkpoints, plan, registry, orchestrator.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	fmt.Printf("thread %s, customer %s. Type a message, or ctrl-d to quit.\n", threadID, appCfg.CustomerID)
	runChatLoop(ctx, agent, threadID, appCfg.CustomerID)
}

func runChatLoop(ctx context.Context, agent *orchestrator.Orchestrator, threadID, customerID string) {
	scanner := bufio.NewScanner(os.Stdin)
	var pending *contract.PendingApproval

	for {
		if pending != nil {
			fmt.Printf("approve %s %v? [y/N + reason] ", pending.Tool, pending.Args)
		} else {
			fmt.Print("you> ")
		}
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var result contract.TurnResult
		var err error
		switch {
		case pending != nil && (line == "y" || line == "yes"):
			result, err = agent.ResumeApproved(ctx, threadID)
		case pending != nil:
			reason := line
			if rest, ok := strings.CutPrefix(line, "no "); ok {
				reason = rest
			} else if rest, ok := strings.CutPrefix(line, "n "); ok {
				reason = rest
			} else if line == "n" || line == "no" {
				reason = "User declined the action."
			}
			result, err = agent.ResumeDenied(ctx, threadID, reason)
		default:
			result, err = agent.SubmitUserMessage(ctx, threadID, customerID, line)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		if result.IsPending() {
			pending = result.Pending
			continue
		}
		pending = nil
		fmt.Printf("assistant> %s\n", result.Reply)
	}
}
