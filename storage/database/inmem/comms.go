package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
)

type commsRepository struct {
	db *DB
}

var _ comms.Repository = (*commsRepository)(nil) // interface compliance check

func NewCommsRepository(db *DB) comms.Repository {
	return &commsRepository{db: db}
}

func (repo *commsRepository) CreateRecords(ctx context.Context, recs ...comms.CommunicationRecord) error {
	defer repo.db.lockWrite(ctx)()

	repo.db.t.records = append(repo.db.t.records, recs...)
	return nil
}

func (repo *commsRepository) QueryRecords(_ context.Context, leadID string) ([]comms.CommunicationRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]comms.CommunicationRecord, 0)
	for _, r := range repo.db.t.records {
		if r.LeadID == leadID {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].SentAt.After(recs[j].SentAt) })
	return recs, nil
}

func (repo *commsRepository) QueryPendingSMS(_ context.Context, limit int) ([]comms.CommunicationRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]comms.CommunicationRecord, 0)
	for _, r := range repo.db.t.records {
		if r.IsSMS() && r.Status == core.DeliveryPending && r.ProviderMessageID != "" {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].SentAt.Before(recs[j].SentAt) })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (repo *commsRepository) UpdateRecordStatus(ctx context.Context, id string, status core.DeliveryStatus) error {
	defer repo.db.lockWrite(ctx)()

	for i := range repo.db.t.records {
		if repo.db.t.records[i].ID == id {
			repo.db.t.records[i].Status = status
			return nil
		}
	}
	return nil
}

func (repo *commsRepository) RecordStats(_ context.Context, filter comms.StatsFilter) ([]comms.StatBucket, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	type bucketKey struct {
		actorID, typ, outcome string
		status                core.DeliveryStatus
	}
	index := make(map[bucketKey]int)
	var buckets []comms.StatBucket

	for _, r := range repo.db.t.records {
		if filter.ActorID != "" && r.ActorID != filter.ActorID {
			continue
		}
		if !filter.From.IsZero() && r.SentAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && r.SentAt.After(filter.To) {
			continue
		}
		k := bucketKey{actorID: r.ActorID, typ: r.Type, outcome: r.CallOutcome, status: r.Status}
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, comms.StatBucket{
				ActorID:     r.ActorID,
				ActorName:   r.ActorName,
				Type:        r.Type,
				Status:      r.Status,
				CallOutcome: r.CallOutcome,
			})
		}
		buckets[i].Count++
	}
	return buckets, nil
}

// Templates

func (repo *commsRepository) dltIDTaken(t comms.MessageTemplate) bool {
	for _, other := range repo.db.t.templates {
		if other.ID != t.ID && other.DLTTemplateID == t.DLTTemplateID {
			return true
		}
	}
	return false
}

func (repo *commsRepository) CreateTemplate(ctx context.Context, t comms.MessageTemplate) (comms.MessageTemplate, error) {
	defer repo.db.lockWrite(ctx)()

	if repo.dltIDTaken(t) {
		return comms.MessageTemplate{}, comms.ErrDLTTemplateIDTaken
	}
	repo.db.t.templates[t.ID] = t
	return t, nil
}

func (repo *commsRepository) UpdateTemplate(ctx context.Context, t comms.MessageTemplate) (comms.MessageTemplate, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.t.templates[t.ID]
	if !ok {
		return comms.MessageTemplate{}, comms.ErrTemplateNotFound
	}
	if repo.dltIDTaken(t) {
		return comms.MessageTemplate{}, comms.ErrDLTTemplateIDTaken
	}
	t.CreatedAt = orig.CreatedAt
	repo.db.t.templates[t.ID] = t
	return t, nil
}

func (repo *commsRepository) GetTemplate(_ context.Context, id string) (comms.MessageTemplate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.t.templates[id]; ok {
		return t, nil
	}
	return comms.MessageTemplate{}, comms.ErrTemplateNotFound
}

func (repo *commsRepository) GetTemplateByDLTID(_ context.Context, dltID string) (comms.MessageTemplate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.t.templates {
		if t.DLTTemplateID == dltID {
			return t, nil
		}
	}
	return comms.MessageTemplate{}, comms.ErrTemplateNotFound
}

func (repo *commsRepository) QueryTemplates(_ context.Context, activeOnly bool) ([]comms.MessageTemplate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tmpls := make([]comms.MessageTemplate, 0, len(repo.db.t.templates))
	for _, t := range repo.db.t.templates {
		if activeOnly && !t.IsActive {
			continue
		}
		tmpls = append(tmpls, t)
	}
	sort.Slice(tmpls, func(i, j int) bool { return tmpls[i].Name < tmpls[j].Name })
	return tmpls, nil
}
