package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/config"
	handler "github.com/NicScarpa/weiss-gestionale-sub004/internal/handlers"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/ledger"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/ingest"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/matching"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/summary"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/workflow"
)

// RegisterRoutes wires repositories, services and handlers onto the engine.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, logger *slog.Logger) {
	txRepo := repository.NewBankTransactionRepository(db)
	batchRepo := repository.NewImportBatchRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	ledgerClient := ledger.NewGormLedger(db)

	ingestSvc := ingest.NewService(txRepo, batchRepo)
	engine := matching.NewEngine(txRepo, ledgerClient, cfg.Match, logger)
	workflowSvc := workflow.NewService(txRepo, auditRepo, ledgerClient)
	summarySvc := summary.NewService(txRepo, cfg.AgingAfter)

	reconHandler := handler.NewReconciliationHandler(ingestSvc, engine, summarySvc, txRepo)
	txHandler := handler.NewTransactionHandler(workflowSvc)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	venues := api.Group("/venues/:venueId")
	venues.POST("/imports", reconHandler.Import)
	venues.POST("/reconciliation/run", reconHandler.Run)
	venues.GET("/summary", reconHandler.Summary)
	venues.GET("/transactions", reconHandler.ListTransactions)

	tx := api.Group("/transactions")
	tx.POST("/:id/confirm", txHandler.Confirm)
	tx.POST("/:id/match", txHandler.ManualMatch)
	tx.POST("/:id/unmatch", txHandler.Unmatch)
	tx.POST("/:id/ignore", txHandler.Ignore)
	tx.POST("/:id/reject-proposal", txHandler.RejectProposal)
}
