// Package sqsq long-polls an SQS queue for job requests and streams each
// job's messages to the response queue named in the request.
package sqsq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/fnjudge/internal/gatherer/sqsgath"
	"github.com/programme-lv/fnjudge/internal/transport"
	"golang.org/x/sync/errgroup"
)

type Consumer struct {
	client   *sqs.Client
	queueUrl string
	pollers  int
	h        transport.Handler
	log      *slog.Logger
}

// NewClient loads the default AWS configuration for region, optionally
// from a shared config profile.
func NewClient(ctx context.Context, region, profile string) (*sqs.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

func New(client *sqs.Client, queueUrl string, pollers int, h transport.Handler, log *slog.Logger) *Consumer {
	return &Consumer{client: client, queueUrl: queueUrl, pollers: max(pollers, 1), h: h, log: log}
}

// Serve runs the pollers until ctx is done. A message is deleted once its
// job has finished, so jobs interrupted by a crash are redelivered.
func (c *Consumer) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range c.pollers {
		g.Go(func() error { return c.poll(gctx) })
	}
	return g.Wait()
}

func (c *Consumer) poll(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)
	for {
		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueUrl),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("failed to receive messages", "err", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		for _, m := range out.Messages {
			c.handle(jobCtx, m.Body)
			_, err := c.client.DeleteMessage(jobCtx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(c.queueUrl),
				ReceiptHandle: m.ReceiptHandle,
			})
			if err != nil {
				c.log.Error("failed to delete message", "err", err)
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body *string) {
	if body == nil {
		return
	}
	req, err := transport.DecodeRequest([]byte(*body))
	if err == nil && req.ResponseQueueUrl == "" {
		err = errors.New("job request has no response queue")
	}
	if err != nil {
		c.log.Warn("dropping job request", "job_id", req.JobID, "err", err)
		return
	}
	gath := sqsgath.New(c.client, req.JobID, req.Kind, req.ResponseQueueUrl, c.log)
	c.h.Handle(ctx, req, gath)
}
