// Package services defines the shared error taxonomy for the export pipeline.
//
// Every failure crossing a component boundary is tagged with one of the
// sentinel markers below so callers can distinguish configuration problems
// (the encoder is missing), validation rejections, external tool failures,
// lookups that found nothing, and integrity violations without parsing
// message text. Use Wrap when raising errors from strategies, the registry,
// or the job controller so messages stay uniform.
package services
