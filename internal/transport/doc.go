// Package transport delivers rendered emails.
//
// # Contract
//
// Every transport implements types.Transport: Send blocks until the message is
// handed to the downstream system or fails, and returns a SendReceipt carrying
// the message id. Transports own their timeouts; callers do not add one.
//
//   - SMTPTransport speaks SMTP with STARTTLS, implicit TLS, or plaintext.
//   - WebhookTransport POSTs a JSON envelope to an HTTP mail relay and retries
//     transient failures (connection errors and 5xx) with linear backoff.
//   - AMQPTransport publishes the envelope to a RabbitMQ exchange for an
//     out-of-process mailer.
//   - LogTransport writes the message to the logger. It is meant for
//     development and never fails.
//
// Every send is observed in herald_transport_send_duration_seconds.
package transport
