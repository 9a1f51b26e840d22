// Package admin creates the topics this system expects. Intended for local
// development; production topics are provisioned out of band.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic describes one topic to ensure. A dead-letter topic must use the same
// partition count as its source topic so republishing can pin partitions.
type Topic struct {
	Name       string
	Partitions int32
}

// EnsureTopics creates any missing topics with replication factor 1.
// Already-existing topics are not an error.
func EnsureTopics(ctx context.Context, brokers []string, topics ...Topic) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("connect for topic creation: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	for _, t := range topics {
		resps, err := adm.CreateTopics(ctx, t.Partitions, 1, nil, t.Name)
		if err != nil {
			return fmt.Errorf("create topic %s: %w", t.Name, err)
		}
		for _, resp := range resps {
			if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
				return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
			}
		}
	}
	return nil
}
