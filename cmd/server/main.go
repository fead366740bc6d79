package main

import (
	"context"
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/kalebecaldas/zorahapp/config"
	"github.com/kalebecaldas/zorahapp/internal/channel"
	"github.com/kalebecaldas/zorahapp/internal/eventbus"
	"github.com/kalebecaldas/zorahapp/internal/handler"
	"github.com/kalebecaldas/zorahapp/internal/intent"
	"github.com/kalebecaldas/zorahapp/internal/pkg/cache"
	"github.com/kalebecaldas/zorahapp/internal/pkg/database"
	"github.com/kalebecaldas/zorahapp/internal/pkg/llm"
	"github.com/kalebecaldas/zorahapp/internal/pricing"
	"github.com/kalebecaldas/zorahapp/internal/repository"
	"github.com/kalebecaldas/zorahapp/internal/router"
	"github.com/kalebecaldas/zorahapp/internal/service"
	"github.com/kalebecaldas/zorahapp/internal/workflow"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg := config.GetConfig()

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Repository 层
	workflowRepo := repository.NewWorkflowRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	stateRepo := repository.NewConversationStateRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	clinicRepo := repository.NewClinicRepository(db)
	insuranceRepo := repository.NewInsuranceRepository(db)
	procedureRepo := repository.NewProcedureRepository(db)
	priceRepo := repository.NewPriceRepository(db)

	priceCache := cache.New(cfg.Cache.TTL)
	resolver := pricing.NewResolver(procedureRepo, insuranceRepo, clinicRepo, priceRepo, priceCache)

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	actions := service.NewActionService(insuranceRepo, procedureRepo, resolver)
	engine := workflow.NewEngine(llmClient, actions, cfg.Bot.MaxHopsPerTurn)

	intentRouter := intent.NewRouter(
		intent.NewMatcher(),
		intent.NewAnalyzer(),
		intent.NewRateLimiter(cfg.Bot.RateLimitCalls, cfg.Bot.RateLimitWindow),
		llmClient,
		cfg.Bot.MinConfidence,
		cfg.Bot.WaitMessage,
	)

	senders := map[string]channel.Sender{
		channel.WhatsApp:  channel.NewWhatsAppSender(cfg),
		channel.Instagram: channel.NewInstagramSender(cfg),
	}

	bus := eventbus.NewBus()
	subscribeEventLog(bus)

	// Service 层
	workflowService := service.NewWorkflowService(workflowRepo, stateRepo, priceCache)
	conversationService := service.NewConversationService(
		cfg, conversationRepo, stateRepo, messageRepo, patientRepo,
		workflowService, engine, intentRouter, senders, bus,
	)
	catalogService := service.NewCatalogService(clinicRepo, insuranceRepo, procedureRepo, priceRepo, priceCache)
	patientService := service.NewPatientService(patientRepo)

	// Handler 层
	webhookHandler := handler.NewWebhookHandler(cfg, conversationService)
	workflowHandler := handler.NewWorkflowHandler(workflowService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	pricingHandler := handler.NewPricingHandler(resolver)
	patientHandler := handler.NewPatientHandler(patientService)

	r := router.Setup(cfg,
		webhookHandler, workflowHandler, conversationHandler,
		catalogHandler, pricingHandler, patientHandler,
	)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// subscribeEventLog mirrors every bus event into the debug log so a
// live feed is visible without any dashboard attached.
func subscribeEventLog(bus *eventbus.Bus) {
	logEvent := func(ctx context.Context, event eventbus.Event) error {
		klog.V(6).Infof("event %s conversation=%d queue=%q", event.Type, event.ConversationID, event.Queue)
		return nil
	}
	bus.Subscribe(eventbus.EventMessageReceived, logEvent)
	bus.Subscribe(eventbus.EventMessageSent, logEvent)
	bus.Subscribe(eventbus.EventConversationTransferred, logEvent)
	bus.Subscribe(eventbus.EventStateChanged, logEvent)
}
