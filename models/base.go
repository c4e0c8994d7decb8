package models

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// PublishAuditEvent implements the transactional outbox: the event record is
// written inside the caller's DB transaction and is NOT published here.
// Publishing is performed asynchronously by the outbox dispatcher after commit.
func PublishAuditEvent(ctx context.Context, db *gorm.DB, businessId string, objectType string, objectId int, action AuditAction, severity AuditSeverity, beforeQty, afterQty decimal.Decimal) error {
	if !config.AuditOutboxEnabled() {
		return nil
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	record := AuditEventRecord{
		BusinessId:    businessId,
		ObjectType:    objectType,
		ObjectId:      objectId,
		Action:        action,
		Severity:      severity,
		BeforeQty:     beforeQty,
		AfterQty:      afterQty,
		ActorId:       userId,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

var docNumberPrefixes = map[DocType]string{
	DocTypeReceipt:       "REC",
	DocTypeIssue:         "ISS",
	DocTypeTransfer:      "XFER",
	DocTypeConversion:    "CONV",
	DocTypeVehicleLoad:   "LOAD",
	DocTypeVehicleUnload: "UNLD",
}

// nextDocumentNumber allocates the next sequential number per business and
// doc type. Redis is the fast path; when it is unavailable the sequence falls
// back to a count-based scan, which is safe because the caller still enforces
// uniqueness at the DB level.
func nextDocumentNumber(ctx context.Context, tx *gorm.DB, businessId string, docType DocType) (string, error) {
	prefix, ok := docNumberPrefixes[docType]
	if !ok {
		return "", utils.NewValidationError("invalid doc type")
	}

	redisKey := fmt.Sprintf("docno:%s:%s", businessId, docType)
	seq, err := config.GetRedisCounter(ctx, redisKey)
	if err == nil && seq > 0 {
		return fmt.Sprintf("%s-%06d", prefix, seq), nil
	}

	var count int64
	if err := tx.WithContext(ctx).Model(&StockDocument{}).
		Where("business_id = ? AND doc_type = ?", businessId, docType).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, count+1), nil
}
