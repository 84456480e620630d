package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/cartoprint/api/internal/client"
	"github.com/cartoprint/api/internal/model"
	"github.com/cartoprint/api/internal/render"
	"github.com/cartoprint/api/internal/service"
	"github.com/cartoprint/api/internal/websocket"
)

// PrintWorker consumes print tasks: it runs the render engine, streams
// progress out through the hub and stores the finished artifact.
type PrintWorker struct {
	printService *service.PrintService
	hub          *websocket.Hub
	storage      client.StorageClient
	loader       render.SourceLoader
	opts         render.Options
}

// NewPrintWorker creates a print worker. storage may be nil, in which case
// finished images are kept alongside the job and served by the API directly.
func NewPrintWorker(printService *service.PrintService, hub *websocket.Hub, storage client.StorageClient, loader render.SourceLoader, opts render.Options) *PrintWorker {
	return &PrintWorker{
		printService: printService,
		hub:          hub,
		storage:      storage,
		loader:       loader,
		opts:         opts,
	}
}

// ProcessTask renders one print job to completion.
func (w *PrintWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.PrintTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := payload.JobID
	log.Printf("Starting print job %d", jobID)

	engine := render.NewEngine(w.loader, w.opts)
	result, err := engine.Render(ctx, payload.Spec, func(progress float64) {
		if err := w.printService.UpdateJobProgress(ctx, jobID, progress); err != nil {
			log.Printf("Failed to update progress for job %d: %v", jobID, err)
		}
		w.hub.BroadcastProgress(jobID, progress, model.JobStatusOngoing)
	})
	if err != nil {
		// Configuration errors are caught at submit; this is a cancellation
		// or an encoding failure. Let asynq retry it.
		w.hub.BroadcastError(jobID, "PRINT_FAILED", err.Error())
		return fmt.Errorf("render failed for job %d: %w", jobID, err)
	}

	imageKey, imageURL, err := w.storeArtifact(ctx, jobID, result.PNG)
	if err != nil {
		w.hub.BroadcastError(jobID, "PRINT_FAILED", "Failed to store print image")
		return err
	}

	if err := w.printService.CompleteJob(ctx, jobID, imageKey, imageURL, result.SourceLoadErrors); err != nil {
		w.hub.BroadcastError(jobID, "PRINT_FAILED", "Failed to save result")
		return err
	}

	status, err := w.printService.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	w.hub.BroadcastComplete(jobID, status)

	log.Printf("Print job %d completed (%d source errors)", jobID, len(result.SourceLoadErrors))
	return nil
}

// storeArtifact uploads the PNG when object storage is configured and always
// keeps a copy next to the job so GET .../image can serve it.
func (w *PrintWorker) storeArtifact(ctx context.Context, jobID int64, png []byte) (string, string, error) {
	if err := w.printService.StoreImage(ctx, jobID, png); err != nil {
		return "", "", fmt.Errorf("failed to store image for job %d: %w", jobID, err)
	}

	if w.storage == nil {
		return "", "", nil
	}

	key := fmt.Sprintf("prints/%s.png", uuid.New().String())
	url, err := w.storage.Upload(ctx, key, bytes.NewReader(png), "image/png")
	if err != nil {
		// The local copy still serves the artifact.
		log.Printf("Failed to upload image for job %d: %v", jobID, err)
		return "", "", nil
	}
	return key, url, nil
}
