package commands

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spatialworks/geocat/catalog"
	"github.com/spatialworks/geocat/config"
	"github.com/spatialworks/geocat/errors"
	"github.com/spatialworks/geocat/harvest"
	"github.com/spatialworks/geocat/internal/httpclient"
	"github.com/spatialworks/geocat/iso"
	"github.com/spatialworks/geocat/logger"
	"github.com/spatialworks/geocat/probe"
)

// pipeline bundles the stores and the importer for one CLI invocation.
// The importer can be rebuilt when the configuration is reloaded.
type pipeline struct {
	objects *harvest.ObjectStore
	catalog *catalog.SQLStore
	mapper  *harvest.Mapper
	log     *zap.SugaredLogger

	mu       sync.RWMutex
	importer *harvest.Importer
	cfg      *config.Config
}

func buildPipeline(database *sql.DB) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Logger
	objects := harvest.NewObjectStore(database, log)
	catalogStore := catalog.NewSQLStore(database, log)

	probeTimeout := time.Duration(cfg.Harvest.ProbeTimeoutSeconds) * time.Second
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	client := httpclient.NewSaferClient(probeTimeout)
	prober := probe.New(client, cfg.Harvest.ProbesPerMinute, log)

	orgs := harvest.NewOrgResolver(catalogStore, harvest.NewOrgCache(), log)
	mapper := harvest.NewMapper(orgs, prober, log)

	p := &pipeline{
		objects: objects,
		catalog: catalogStore,
		mapper:  mapper,
		log:     log,
	}
	if err := p.applyConfig(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// applyConfig rebuilds the importer from a (re)loaded configuration.
// Registered as the config-watcher reload callback in long-running
// commands.
func (p *pipeline) applyConfig(cfg *config.Config) error {
	actor := cfg.Harvest.Actor
	if actor == "" {
		actor = config.DefaultActor
	}
	importer := harvest.NewImporter(
		p.objects, p.catalog, p.catalog, p.mapper,
		cfg.Harvest, nil,
		p.log.With("actor", actor),
	)

	p.mu.Lock()
	p.importer = importer
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// Importer returns the current importer instance.
func (p *pipeline) Importer() *harvest.Importer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.importer
}

// ensureSource returns the harvest source with the given id, creating
// it when absent.
func (p *pipeline) ensureSource(ctx context.Context, id, url, title, ownerOrg, sourceConfig string) (*harvest.Source, error) {
	src, err := p.objects.GetSource(ctx, id)
	if err == nil {
		return src, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, err
	}

	src = &harvest.Source{
		ID:       id,
		URL:      url,
		Title:    title,
		OwnerOrg: ownerOrg,
		Config:   sourceConfig,
	}
	if err := p.objects.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// gatherDocument does what a remote gather stage would: derive the
// document's GUID, decide new vs change against the current object
// set, and persist a fresh harvest object ready for import. Documents
// in a non-ISO standard carry their original form as extras so the
// transform chain can pick them up.
func (p *pipeline) gatherDocument(ctx context.Context, source *harvest.Source, content []byte) (*harvest.Object, error) {
	guid := ""
	if values, err := iso.Parse(content); err == nil && values.GUID != "" {
		guid = values.GUID
	}
	if guid == "" {
		sum := md5.Sum(content)
		guid = hex.EncodeToString(sum[:])
	}

	status := harvest.StatusNew
	if _, err := p.objects.CurrentObject(ctx, guid, source.ID); err == nil {
		status = harvest.StatusChange
	} else if !errors.IsNotFoundError(err) {
		return nil, err
	}

	job := &harvest.Job{ID: uuid.NewString(), SourceID: source.ID}
	if err := p.objects.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	extras := map[string]string{
		harvest.ExtraStatus: string(status),
	}
	if standard := iso.GuessStandard(content); standard != iso.StandardISO {
		extras[harvest.ExtraOriginalDocument] = string(content)
		extras[harvest.ExtraOriginalFormat] = standard
	}

	obj := &harvest.Object{
		ID:       uuid.NewString(),
		GUID:     guid,
		Content:  string(content),
		SourceID: source.ID,
		JobID:    job.ID,
		Extras:   extras,
	}
	if err := p.objects.CreateObject(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}
