package migration

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RunPubSubPayload is the message that schedules one migration run.
type RunPubSubPayload struct {
	RunId        uuid.UUID `json:"run_id"`
	CompanyId    string    `json:"company_id"`
	ConnectionId uint      `json:"connection_id"`
}

// PubSubPushEnvelope is the push-delivery wrapper Google wraps messages in.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PublishMigrationRun schedules the run. Without a configured Pub/Sub project
// the run executes in-process on a background goroutine, which keeps local
// development working without GCP.
func PublishMigrationRun(ctx context.Context, runId uuid.UUID, companyId string, connectionId uint) error {
	if config.GetPubSubProjectID() == "" {
		go func() {
			_ = executeRun(context.Background(), RunPubSubPayload{
				RunId:        runId,
				CompanyId:    companyId,
				ConnectionId: connectionId,
			})
		}()
		return nil
	}

	topicName := strings.TrimSpace(os.Getenv("MIGRATION_RUN_TOPIC"))
	if topicName == "" {
		topicName = "eboekhouden-migration"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("MIGRATION_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := RunPubSubPayload{
		RunId:        runId,
		CompanyId:    companyId,
		ConnectionId: connectionId,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler receives the push delivery and drives the run. Always
// responds 204: a redelivery of a finished or broken run must not loop.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_MIGRATION_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload RunPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == uuid.Nil || payload.CompanyId == "" {
			c.Status(204)
			return
		}

		_ = executeRun(c.Request.Context(), payload)
		c.Status(204)
	}
}

// executeRun builds the API client and orchestrator for the payload's company
// and runs the migration.
func executeRun(ctx context.Context, payload RunPubSubPayload) error {
	logger := config.GetLogger()
	ctx = utils.SetCompanyIdInContext(ctx, payload.CompanyId)
	db := config.GetDB()

	conn, err := models.GetMigrationConnection(ctx, db, payload.CompanyId)
	if err != nil {
		config.LogError(logger, "migration", "executeRun", "loading connection", payload, err)
		return err
	}
	if conn == nil {
		return nil
	}

	api, err := eboekhouden.NewClient(eboekhouden.Config{
		APIURL:   conn.APIURL,
		APIToken: conn.APIToken,
		Source:   conn.Source,
	})
	if err != nil {
		config.LogError(logger, "migration", "executeRun", "building api client", payload.CompanyId, err)
		return err
	}

	orchestrator := NewOrchestrator(db, api, config.GetRedisLock(), logger)
	if err := orchestrator.Run(ctx, payload.CompanyId, payload.RunId); err != nil {
		config.LogError(logger, "migration", "executeRun", "run failed", payload, err)
		return err
	}
	return nil
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
