package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/user-auth/internal/logging"
)

// RegistrationLog is the file the consumer appends to.
var RegistrationLog = filepath.Join("logs", "registrations.log")

// StartRegistrationConsumer connects to the broker, declares the
// user.registered queue and appends one line per event to
// logs/registrations.log. It reconnects with exponential backoff and returns
// only when ctx is cancelled.
func StartRegistrationConsumer(ctx context.Context, url string, log logging.Logger) error {
    log = log.With("component", "registration_consumer")
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Warn(ctx, "failed to dial broker", "err", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn(ctx, "consume loop ended; reconnecting", "err", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log logging.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn(ctx, "set QoS failed", "err", err)
    }
    if _, err := ch.QueueDeclare(UserRegisteredQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, UserRegisteredQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := appendRegistration(RegistrationLog, d.Body); err != nil {
            log.Error(ctx, "handle message failed", "err", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func appendRegistration(path string, body []byte) error {
    var ev UserRegisteredEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    return writeRegistration(f, ev)
}

func writeRegistration(w io.Writer, ev UserRegisteredEvent) error {
    _, err := fmt.Fprintf(w, "[%s] User registered | user_id=%d | email=%q | role=%s\n",
        ev.RegisteredAt, ev.UserID, ev.Email, ev.Role)
    if err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
