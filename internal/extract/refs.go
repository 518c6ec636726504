package extract

import (
	"context"
	"regexp"

	"github.com/agentforge/api/internal/artifacts"
	"go.uber.org/zap"
)

var storageURIRe = regexp.MustCompile(`s3://[a-zA-Z0-9.-]+/[a-zA-Z0-9._/-]+`)

// StorageRefs scans normalized response text for storage URIs and
// classifies them by filename suffix into artifact slots.
func (e *Extractor) StorageRefs(response string) map[artifacts.Slot]string {
	refs := make(map[artifacts.Slot]string)
	for _, uri := range storageURIRe.FindAllString(response, -1) {
		if slot, ok := artifacts.SlotForFilename(uri); ok {
			refs[slot] = uri
		}
	}
	if len(refs) > 0 {
		e.logger.Debug("found storage references in response", zap.Int("count", len(refs)))
	}
	return refs
}

// ProbeStore checks the artifact store directly for all slots of a
// correlation id. Used when the model saved artifacts but did not echo the
// URIs back in its response.
func (e *Extractor) ProbeStore(ctx context.Context, store *artifacts.Store, requestID string) map[artifacts.Slot]string {
	refs := make(map[artifacts.Slot]string)
	if requestID == "" || store == nil {
		return refs
	}
	metas, err := store.List(ctx, requestID)
	if err != nil {
		e.logger.Error("artifact store probe failed", zap.String("request_id", requestID), zap.Error(err))
		return refs
	}
	for _, meta := range metas {
		refs[meta.Slot] = meta.URI
	}
	if len(refs) > 0 {
		e.logger.Info("direct probe found stored artifacts",
			zap.String("request_id", requestID),
			zap.Int("count", len(refs)))
	}
	return refs
}
