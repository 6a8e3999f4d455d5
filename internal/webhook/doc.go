// Package webhook verifies and receives scrape-service callbacks.
//
// Every callback is signed with HMAC-SHA256 over "{timestamp}.{body}" using
// the caller's API key, and carries two headers:
//
//	x-webhook-signature: <lowercase hex digest>
//	x-webhook-timestamp: <epoch milliseconds>
//
// # Verification
//
// Verify and VerifyWebhook implement the trust check as a pure function:
//
//   - empty body, signature, timestamp or secret returns *MissingParameterError
//   - a timestamp that is not a base-10 integer returns false
//   - |now - timestamp| > MaxAge (default 5 minutes) returns false
//   - otherwise the signature is compared in constant time with the
//     recomputed one
//
// Stale, malformed and forged callbacks all produce the same false, so a
// caller cannot learn which check failed.
//
// # Receiver
//
// Server mounts the callback route on a chi router:
//
//  1. Body read raw, up to MaxBodySize (413 beyond)
//  2. Signature and timestamp headers extracted (403 if missing)
//  3. Verify (403 on any failure, no details)
//  4. event.ParseEvent (400 malformed JSON, 422 unknown or invalid variant)
//  5. DeliverySink.Record (500 on failure)
//  6. 200 with the delivery id
//
// The body handed to Verify is the exact bytes read from the wire. Never
// decode and re-encode it first.
//
// # Example Usage
//
//	srv := webhook.New(webhook.Config{
//		Listen: "127.0.0.1:3000",
//		Path:   "/api/scrape-callback",
//		Secret: os.Getenv("SCRAP_API_KEY"),
//	}, inbox.New(db), logger)
//	if err := srv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
