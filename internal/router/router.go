package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/kalebecaldas/zorahapp/config"
	"github.com/kalebecaldas/zorahapp/internal/handler"
)

func Setup(
	cfg *config.Config,
	webhookHandler *handler.WebhookHandler,
	workflowHandler *handler.WorkflowHandler,
	conversationHandler *handler.ConversationHandler,
	catalogHandler *handler.CatalogHandler,
	pricingHandler *handler.PricingHandler,
	patientHandler *handler.PatientHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Meta 回调：验证握手用 GET，消息推送用 POST
	webhooks := r.Group("/webhook")
	{
		webhooks.GET("/whatsapp", webhookHandler.VerifyWhatsApp)
		webhooks.POST("/whatsapp", webhookHandler.ReceiveWhatsApp)
		webhooks.GET("/instagram", webhookHandler.VerifyInstagram)
		webhooks.POST("/instagram", webhookHandler.ReceiveInstagram)
	}

	api := r.Group("/api")
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		workflows := api.Group("/workflows")
		{
			workflows.POST("", workflowHandler.Create)
			workflows.GET("", workflowHandler.List)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.PUT("/:id", workflowHandler.Update)
			workflows.DELETE("/:id", workflowHandler.Delete)
			workflows.POST("/:id/activate", workflowHandler.Activate)
		}

		conversations := api.Group("/conversations")
		{
			conversations.GET("", conversationHandler.List)
			conversations.GET("/:id", conversationHandler.Get)
			conversations.GET("/:id/messages", conversationHandler.Messages)
			conversations.POST("/:id/transfer", conversationHandler.Transfer)
			conversations.POST("/:id/assign", conversationHandler.Assign)
			conversations.POST("/:id/reply", conversationHandler.Reply)
			conversations.POST("/:id/close", conversationHandler.Close)
		}

		patients := api.Group("/patients")
		{
			patients.GET("", patientHandler.List)
			patients.GET("/:id", patientHandler.Get)
			patients.POST("", patientHandler.Save)
			patients.DELETE("/:id", patientHandler.Delete)
		}

		clinics := api.Group("/clinics")
		{
			clinics.GET("", catalogHandler.ListClinics)
			clinics.POST("", catalogHandler.SaveClinic)
			clinics.DELETE("/:id", catalogHandler.DeleteClinic)
		}

		insurances := api.Group("/insurances")
		{
			insurances.GET("", catalogHandler.ListInsurances)
			insurances.POST("", catalogHandler.SaveInsurance)
			insurances.DELETE("/:id", catalogHandler.DeleteInsurance)
		}

		procedures := api.Group("/procedures")
		{
			procedures.GET("", catalogHandler.ListProcedures)
			procedures.POST("", catalogHandler.SaveProcedure)
			procedures.DELETE("/:id", catalogHandler.DeleteProcedure)
		}

		prices := api.Group("/prices")
		{
			prices.GET("", catalogHandler.ListPrices)
			prices.POST("", catalogHandler.SavePrice)
			prices.DELETE("/:id", catalogHandler.DeletePrice)
		}

		api.GET("/pricing/quote", pricingHandler.Quote)
	}

	return r
}
