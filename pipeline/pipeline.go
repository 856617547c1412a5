// Package pipeline orchestrates the full photo-to-robot run: stat and
// concept-image generation, mesh conversion, rigging, animation fan-out,
// asset materialization, and final persistence.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/roboforge/assets"
	"github.com/BaSui01/roboforge/progress"
	"github.com/BaSui01/roboforge/store"
	"github.com/BaSui01/roboforge/types"
)

// Animation library action ids.
const (
	ActionIdle   = 0
	ActionAttack = 92
)

// Generator is the multimodal generation service: stat derivation from the
// input photograph and concept-image synthesis.
type Generator interface {
	GenerateStats(ctx context.Context, imageB64 string) (*types.RobotStats, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// MeshService is the 3D asset service: job submission, polling, and asset
// download for the mesh, rigging, and animation stages.
type MeshService interface {
	CreateImageTo3DTask(ctx context.Context, image string) (string, error)
	WaitForModelURL(ctx context.Context, taskID string, onProgress func(int)) (string, error)
	CreateRiggingTask(ctx context.Context, meshTaskID string) (string, error)
	WaitForRigging(ctx context.Context, taskID string, onProgress func(int)) error
	CreateAnimationTask(ctx context.Context, rigTaskID string, actionID int) (string, error)
	WaitForAnimation(ctx context.Context, taskID string, onProgress func(int)) (string, error)
	DownloadAsset(ctx context.Context, url string) ([]byte, error)
}

// Orchestrator drives one pipeline run end to end.
type Orchestrator struct {
	gen     Generator
	mesh    MeshService
	mat     assets.Materializer
	repo    store.Repository
	sink    progress.Sink
	metrics *Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New builds an Orchestrator. A nil sink disables progress reporting.
func New(gen Generator, mesh MeshService, mat assets.Materializer, repo store.Repository,
	sink progress.Sink, metrics *Metrics, logger *zap.Logger) *Orchestrator {
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &Orchestrator{
		gen:     gen,
		mesh:    mesh,
		mat:     mat,
		repo:    repo,
		sink:    sink,
		metrics: metrics,
		tracer:  otel.Tracer("roboforge/pipeline"),
		logger:  logger.With(zap.String("component", "pipeline")),
	}
}

// Execute runs the full pipeline on a base64-encoded input photograph (a
// data URI prefix is tolerated and stripped). On success the finished
// record has already been persisted.
func (o *Orchestrator) Execute(ctx context.Context, inputImage string) (*store.RobotRecord, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.execute")
	defer span.End()

	rec, err := o.run(ctx, stripDataURI(inputImage), start)
	if err != nil {
		o.metrics.RunsTotal.WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("pipeline failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	o.metrics.RunsTotal.WithLabelValues("success").Inc()
	o.logger.Info("pipeline finished",
		zap.String("id", rec.ID),
		zap.String("name", rec.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rec, nil
}

func (o *Orchestrator) run(ctx context.Context, inputB64 string, start time.Time) (*store.RobotRecord, error) {
	var stats *types.RobotStats
	err := o.stage(ctx, "stats", func(ctx context.Context) error {
		o.sink.Publish(progress.Text("Analyzing subject and deriving stats..."))
		var err error
		stats, err = o.gen.GenerateStats(ctx, inputB64)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.sink.Publish(progress.Event{Name: progress.EventStats, Data: stats})

	var conceptB64 string
	err = o.stage(ctx, "concept_image", func(ctx context.Context) error {
		o.sink.Publish(progress.Text("Generating robot concept image..."))
		var err error
		conceptB64, err = o.gen.GenerateImage(ctx, stats.VisualDescription)
		return err
	})
	if err != nil {
		return nil, err
	}

	var meshTaskID string
	err = o.stage(ctx, "mesh", func(ctx context.Context) error {
		o.sink.Publish(progress.Text("Converting concept image to 3D model..."))
		var err error
		meshTaskID, err = o.mesh.CreateImageTo3DTask(ctx, conceptB64)
		if err != nil {
			return err
		}
		_, err = o.mesh.WaitForModelURL(ctx, meshTaskID, func(p int) {
			o.sink.Publish(progress.Text(fmt.Sprintf("Image to 3D Base Model: %d%%", p)))
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	var originalPath, imagePath string
	err = o.stage(ctx, "materialize_images", func(ctx context.Context) error {
		var err error
		originalPath, err = o.writeImage(meshTaskID+"_original.png", inputB64)
		if err != nil {
			return err
		}
		imagePath, err = o.writeImage(meshTaskID+"_gen.png", conceptB64)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.sink.Publish(progress.Event{Name: progress.EventImages, Data: map[string]string{
		"original_image_path": originalPath,
		"image_path":          imagePath,
	}})

	var rigTaskID string
	err = o.stage(ctx, "rigging", func(ctx context.Context) error {
		o.sink.Publish(progress.Text("Rigging model skeleton..."))
		var err error
		rigTaskID, err = o.mesh.CreateRiggingTask(ctx, meshTaskID)
		if err != nil {
			return err
		}
		return o.mesh.WaitForRigging(ctx, rigTaskID, func(p int) {
			o.sink.Publish(progress.Text(fmt.Sprintf("Rigging Model: %d%%", p)))
		})
	})
	if err != nil {
		return nil, err
	}

	var idleURL, attackURL string
	err = o.stage(ctx, "animation", func(ctx context.Context) error {
		o.sink.Publish(progress.Text("Applying animations..."))
		// Plain errgroup: one branch failing never cancels the other, both
		// polls always run to their own terminal state.
		var g errgroup.Group
		g.Go(func() error {
			var err error
			idleURL, err = o.animate(ctx, rigTaskID, "idle", ActionIdle)
			return err
		})
		g.Go(func() error {
			var err error
			attackURL, err = o.animate(ctx, rigTaskID, "attack", ActionAttack)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}

	var modelPath, attackModelPath string
	err = o.stage(ctx, "materialize_models", func(ctx context.Context) error {
		o.sink.Publish(progress.Text("Downloading animated models..."))
		var err error
		modelPath, err = o.downloadModel(ctx, idleURL, meshTaskID+"_idle.glb")
		if err != nil {
			return err
		}
		attackModelPath, err = o.downloadModel(ctx, attackURL, meshTaskID+"_attack.glb")
		return err
	})
	if err != nil {
		return nil, err
	}

	rec := &store.RobotRecord{
		ID:                uuid.NewString(),
		Name:              stats.Name,
		Lore:              stats.Lore,
		HP:                stats.HP,
		ATK:               stats.ATK,
		DEF:               stats.DEF,
		OriginalImagePath: originalPath,
		ImagePath:         imagePath,
		ModelPath:         modelPath,
		AttackModelPath:   attackModelPath,
		CreatedAt:         time.Now().Unix(),
		GenerationTimeMS:  time.Since(start).Milliseconds(),
	}
	if err := o.stage(ctx, "persist", func(ctx context.Context) error {
		return o.repo.Insert(ctx, rec)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (o *Orchestrator) animate(ctx context.Context, rigTaskID, label string, actionID int) (string, error) {
	taskID, err := o.mesh.CreateAnimationTask(ctx, rigTaskID, actionID)
	if err != nil {
		return "", err
	}
	return o.mesh.WaitForAnimation(ctx, taskID, func(p int) {
		o.sink.Publish(progress.Text(fmt.Sprintf("Applying Animation (%s): %d%%", label, p)))
	})
}

func (o *Orchestrator) writeImage(name, b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", types.Errorf(types.ErrDecodeFailed, "decode image for %s", name).WithCause(err)
	}
	return o.mat.Write(name, data)
}

func (o *Orchestrator) downloadModel(ctx context.Context, url, name string) (string, error) {
	data, err := o.mesh.DownloadAsset(ctx, url)
	if err != nil {
		return "", err
	}
	return o.mat.Write(name, data)
}

func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	begin := time.Now()
	err := fn(ctx)
	o.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(begin).Seconds())
	if err != nil {
		o.metrics.StageFailures.WithLabelValues(name).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// stripDataURI removes a leading "data:*;base64," prefix, leaving the raw
// base64 payload.
func stripDataURI(image string) string {
	if strings.HasPrefix(image, "data:") {
		if i := strings.Index(image, ","); i >= 0 {
			return image[i+1:]
		}
	}
	return image
}
