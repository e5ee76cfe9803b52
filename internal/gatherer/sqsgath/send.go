package sqsgath

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type publisher struct {
	client   *sqs.Client
	queueUrl string
}

func (p *publisher) Publish(ctx context.Context, msg []byte) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueUrl),
		MessageBody: aws.String(string(msg)),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", p.queueUrl, err)
	}
	return nil
}
