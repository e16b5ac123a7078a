package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/linkpulse/linkpulse/internal"
	"github.com/linkpulse/linkpulse/internal/events"
	applog "github.com/linkpulse/linkpulse/internal/logger"
)

// The worker folds the click stream into slug x hour x country rollup
// rows. It reads the same queue the API service publishes to; the store's
// synchronous click log stays the source of truth, these rollups only
// serve cheap dashboard queries.

const (
	batchSize     = 100
	flushInterval = 2 * time.Second
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()

	db, err := gorm.Open(postgres.Open(os.Getenv("DB_URL")), &gorm.Config{
		Logger: applog.NewGormLogger(os.Getenv("GORM_LOG_LEVEL")),
	})
	if err != nil {
		slog.Error("Unable to connect to database", "err", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&internal.ClickRollup{}); err != nil {
		slog.Error("Unable to migrate rollup table", "err", err)
		os.Exit(1)
	}

	rabbitConn, err := amqp091.Dial(os.Getenv("RABBITMQ_URL"))
	if err != nil {
		slog.Error("Unable to connect to RabbitMQ", "err", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	rabbitCH, err := rabbitConn.Channel()
	if err != nil {
		slog.Error("Unable to open RabbitMQ channel", "err", err)
		os.Exit(1)
	}
	defer rabbitCH.Close()

	queueName := os.Getenv("CLICK_QUEUE_NAME")
	if queueName == "" {
		queueName = "click_events"
	}
	q, err := rabbitCH.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		slog.Error("Failed to declare queue", "err", err)
		os.Exit(1)
	}

	if err := rabbitCH.Qos(batchSize, 0, false); err != nil {
		slog.Error("Failed to set QoS", "err", err)
		os.Exit(1)
	}

	msgs, err := rabbitCH.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("Failed to register consumer", "err", err)
		os.Exit(1)
	}

	slog.Info("Analytics Worker started. Waiting for click events...")

	var clicks []events.Click
	var deliveries []amqp091.Delivery

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				slog.Warn("RabbitMQ channel closed")
				return
			}
			var click events.Click
			if err := json.Unmarshal(d.Body, &click); err != nil {
				slog.Error("Error decoding message. Rejecting.", "err", err)
				d.Reject(false)
				continue
			}
			clicks = append(clicks, click)
			deliveries = append(deliveries, d)

			if len(clicks) >= batchSize {
				processBatch(db, clicks, deliveries)
				clicks, deliveries = nil, nil
				ticker.Reset(flushInterval)
			}

		case <-ticker.C:
			if len(clicks) > 0 {
				slog.Info("Timer flush: processing queued clicks", "count", len(clicks))
				processBatch(db, clicks, deliveries)
				clicks, deliveries = nil, nil
			}
		}
	}
}

func processBatch(db *gorm.DB, clicks []events.Click, deliveries []amqp091.Delivery) {
	if len(clicks) == 0 {
		return
	}
	slog.Info("Processing batch of clicks", "count", len(clicks))

	counts := make(map[internal.ClickRollup]int64)
	for _, click := range clicks {
		key := internal.ClickRollup{
			Slug:       click.Slug,
			HourBucket: click.Timestamp - click.Timestamp%3600,
			Country:    click.Country,
		}
		counts[key]++
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for key, count := range counts {
			row := internal.ClickRollup{
				Slug:       key.Slug,
				HourBucket: key.HourBucket,
				Country:    key.Country,
				ClickCount: count,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "slug"}, {Name: "hour_bucket"}, {Name: "country"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"click_count": gorm.Expr("click_rollups.click_count + EXCLUDED.click_count"),
				}),
			}).Create(&row).Error
			if err != nil {
				slog.Error("Error upserting rollup", "slug", key.Slug, "err", err)
				return err
			}
		}
		return nil
	})

	if err != nil {
		slog.Error("Failed to process batch transaction. Nacking messages.", "err", err)
		for _, d := range deliveries {
			d.Nack(false, true)
		}
		return
	}

	for _, d := range deliveries {
		d.Ack(false)
	}
	slog.Info("Successfully processed and acked clicks", "count", len(deliveries))
}
