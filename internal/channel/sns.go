package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	smsProtocol      = "sms"
	smsTypeAttribute = "AWS.SNS.SMS.SMSType"
	smsTypeTransact  = "Transactional"
	filterPolicyAttr = "FilterPolicy"
)

// snsAPI is the subset of *sns.Client used by SNSChannel.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
	ListSubscriptionsByTopic(ctx context.Context, params *sns.ListSubscriptionsByTopicInput, optFns ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error)
}

// SNSChannel implements Channel over Amazon SNS SMS delivery.
type SNSChannel struct {
	client snsAPI
	region string
}

// NewSNSChannel loads AWS configuration for region and creates an SNS channel.
// SDK-level retries are disabled: a failed call is reported and the change
// event is redelivered by its source instead.
func NewSNSChannel(ctx context.Context, region string) (*SNSChannel, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("SNS notification channel initialized", "region", region)
	return &SNSChannel{client: sns.NewFromConfig(cfg), region: region}, nil
}

// SendToAddress sends a transactional SMS directly to a phone number.
func (c *SNSChannel) SendToAddress(ctx context.Context, address, text string) (MessageID, error) {
	out, err := c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(address),
		Message:           aws.String(text),
		MessageAttributes: messageAttributes(nil),
	})
	if err != nil {
		return "", classify("send to address", err)
	}
	return MessageID(aws.ToString(out.MessageId)), nil
}

// SendToTopic publishes a transactional SMS to a topic. attrs become string
// message attributes so that subscription filter policies can match them.
func (c *SNSChannel) SendToTopic(ctx context.Context, topicID, text string, attrs map[string]string) (MessageID, error) {
	out, err := c.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(topicID),
		Message:           aws.String(text),
		MessageAttributes: messageAttributes(attrs),
	})
	if err != nil {
		return "", classify("send to topic", err)
	}
	return MessageID(aws.ToString(out.MessageId)), nil
}

// AddSubscription subscribes a phone number to a topic. SNS treats a repeated
// request with identical attributes as the same subscription.
func (c *SNSChannel) AddSubscription(ctx context.Context, topicID, address string, filter Filter) (SubscriptionHandle, error) {
	input := &sns.SubscribeInput{
		Protocol:              aws.String(smsProtocol),
		TopicArn:              aws.String(topicID),
		Endpoint:              aws.String(address),
		ReturnSubscriptionArn: true,
	}
	if !filter.IsZero() {
		policy, err := filter.Policy()
		if err != nil {
			return "", fmt.Errorf("failed to encode filter policy: %w", err)
		}
		input.Attributes = map[string]string{filterPolicyAttr: policy}
	}

	out, err := c.client.Subscribe(ctx, input)
	if err != nil {
		return "", classify("add subscription", err)
	}
	return SubscriptionHandle(aws.ToString(out.SubscriptionArn)), nil
}

// RemoveSubscription deletes a subscription by its ARN.
func (c *SNSChannel) RemoveSubscription(ctx context.Context, handle SubscriptionHandle) error {
	_, err := c.client.Unsubscribe(ctx, &sns.UnsubscribeInput{
		SubscriptionArn: aws.String(string(handle)),
	})
	if err != nil {
		return classify("remove subscription", err)
	}
	return nil
}

// ListSubscriptions pages through every subscription of a topic.
func (c *SNSChannel) ListSubscriptions(ctx context.Context, topicID string) ([]Subscription, error) {
	var subs []Subscription
	paginator := sns.NewListSubscriptionsByTopicPaginator(c.client, &sns.ListSubscriptionsByTopicInput{
		TopicArn: aws.String(topicID),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("list subscriptions", err)
		}
		for _, s := range page.Subscriptions {
			subs = append(subs, Subscription{
				Handle:   SubscriptionHandle(aws.ToString(s.SubscriptionArn)),
				TopicID:  aws.ToString(s.TopicArn),
				Protocol: aws.ToString(s.Protocol),
				Address:  aws.ToString(s.Endpoint),
			})
		}
	}
	return subs, nil
}

func messageAttributes(attrs map[string]string) map[string]types.MessageAttributeValue {
	out := make(map[string]types.MessageAttributeValue, len(attrs)+1)
	for name, value := range attrs {
		out[name] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	out[smsTypeAttribute] = types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(smsTypeTransact),
	}
	return out
}
