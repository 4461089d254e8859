package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const readyTimeout = 2 * time.Second

// ReadyCheck reports ready once any configured broker answers a metadata request. A bare TCP
// connect is not enough: a broker that is still starting accepts connections first.
func ReadyCheck(brokers string) func(context.Context) error {
	list := SplitBrokers(brokers)
	return func(ctx context.Context) error {
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		var errs []error
		for _, addr := range list {
			if err := brokerReady(ctx, addr); err != nil {
				errs = append(errs, fmt.Errorf("broker %s: %w", addr, err))
				continue
			}
			return nil
		}
		return errors.Join(errs...)
	}
}

func brokerReady(ctx context.Context, addr string) error {
	dialer := kafka.Dialer{Timeout: readyTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(readyTimeout)); err != nil {
		return err
	}
	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}
