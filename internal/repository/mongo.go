package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"natours/api/internal/apperr"
	"natours/api/internal/query"
	"natours/api/internal/resource"
)

const mongoID = "_id"

// Mongo stores records in one collection per descriptor, keyed by the
// record id as _id.
type Mongo struct {
	coll *mongo.Collection
	desc *resource.Descriptor
}

func NewMongo(db *mongo.Database, desc *resource.Descriptor) *Mongo {
	return &Mongo{coll: db.Collection(desc.Name), desc: desc}
}

// EnsureIndexes creates a unique index per unique field.
func (r *Mongo) EnsureIndexes(ctx context.Context) error {
	var models []mongo.IndexModel
	for _, field := range r.desc.UniqueFields() {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	}
	if len(models) == 0 {
		return nil
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("ensure indexes %s: %w", r.desc.Name, err)
	}
	return nil
}

func (r *Mongo) Find(ctx context.Context, q FindQuery) ([]resource.Record, error) {
	opts := options.Find().SetSort(mongoSort(q.Sort))
	if proj := mongoProjection(q.Projection); proj != nil {
		opts.SetProjection(proj)
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, mongoFilter(q.Filter), opts)
	if err != nil {
		return nil, r.mapError("find", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, r.mapError("find", err)
	}
	out := make([]resource.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, r.record(doc))
	}
	return out, nil
}

func (r *Mongo) Count(ctx context.Context, f query.Filter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, mongoFilter(f))
	if err != nil {
		return 0, r.mapError("count", err)
	}
	return n, nil
}

func (r *Mongo) FindByID(ctx context.Context, id string, p query.Projection) (resource.Record, error) {
	opts := options.FindOne()
	if proj := mongoProjection(p); proj != nil {
		opts.SetProjection(proj)
	}
	var doc bson.M
	if err := r.coll.FindOne(ctx, bson.D{{Key: mongoID, Value: id}}, opts).Decode(&doc); err != nil {
		return nil, r.mapError("find by id", err)
	}
	return r.record(doc), nil
}

func (r *Mongo) Create(ctx context.Context, rec resource.Record) (resource.Record, error) {
	id := rec.ID()
	if id == "" {
		return nil, apperr.Validation(resource.IDField, "is required")
	}
	doc := bson.M{mongoID: id}
	for k, v := range rec {
		if k != resource.IDField && v != nil {
			doc[k] = v
		}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, r.mapError("create", err)
	}
	return r.record(doc), nil
}

func (r *Mongo) UpdateByID(ctx context.Context, id string, changes resource.Record) (resource.Record, error) {
	return r.FindOneAndUpdate(ctx, query.Filter{{Field: resource.IDField, Op: query.Eq, Value: id}}, changes)
}

func (r *Mongo) DeleteByID(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: mongoID, Value: id}})
	if err != nil {
		return r.mapError("delete", err)
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Mongo) FindOneAndUpdate(ctx context.Context, f query.Filter, changes resource.Record) (resource.Record, error) {
	order := bson.D{{Key: mongoID, Value: 1}}
	var doc bson.M
	var err error
	if update := mongoUpdate(changes); len(update) == 0 {
		err = r.coll.FindOne(ctx, mongoFilter(f), options.FindOne().SetSort(order)).Decode(&doc)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetSort(order)
		err = r.coll.FindOneAndUpdate(ctx, mongoFilter(f), update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, r.mapError("find one and update", err)
	}
	return r.record(doc), nil
}

func (r *Mongo) record(doc bson.M) resource.Record {
	rec := make(resource.Record, len(doc))
	for k, v := range doc {
		if k == mongoID {
			rec[resource.IDField] = fmt.Sprint(v)
			continue
		}
		rec[k] = fromBSON(v)
	}
	return r.desc.Restore(rec)
}

func (r *Mongo) mapError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s %s: %w", op, r.desc.Name, apperr.ErrConflict)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, context.DeadlineExceeded):
		return apperr.Unavailable(op+" "+r.desc.Name, err)
	}
	return fmt.Errorf("%s %s: %w", op, r.desc.Name, err)
}

var mongoOperators = map[query.Operator]string{
	query.Gt:  "$gt",
	query.Gte: "$gte",
	query.Lt:  "$lt",
	query.Lte: "$lte",
	query.Ne:  "$ne",
}

// mongoFilter combines conditions with $and so repeated fields never
// overwrite each other.
func mongoFilter(f query.Filter) bson.D {
	if len(f) == 0 {
		return bson.D{}
	}
	clauses := make(bson.A, 0, len(f))
	for _, c := range f {
		field := c.Field
		if field == resource.IDField {
			field = mongoID
		}
		var cond any
		switch c.Op {
		case query.Eq:
			if list, ok := c.Value.([]any); ok {
				cond = bson.D{{Key: "$in", Value: bson.A(list)}}
			} else {
				cond = c.Value
			}
		default:
			cond = bson.D{{Key: mongoOperators[c.Op], Value: c.Value}}
		}
		clauses = append(clauses, bson.D{{Key: field, Value: cond}})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: clauses}}
}

func mongoSort(sort []query.SortField) bson.D {
	out := make(bson.D, 0, len(sort)+1)
	for _, s := range sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: s.Field, Value: dir})
	}
	return append(out, bson.E{Key: mongoID, Value: 1})
}

func mongoProjection(p query.Projection) bson.D {
	switch {
	case p.IsInclude():
		out := make(bson.D, 0, len(p.Include))
		for _, f := range p.Include {
			out = append(out, bson.E{Key: f, Value: 1})
		}
		return out
	case len(p.Exclude) > 0:
		out := make(bson.D, 0, len(p.Exclude))
		for _, f := range p.Exclude {
			if f != resource.IDField {
				out = append(out, bson.E{Key: f, Value: 0})
			}
		}
		return out
	}
	return nil
}

func mongoUpdate(changes resource.Record) bson.D {
	set, unset := splitChanges(changes)
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: bson.M(set)})
	}
	if len(unset) > 0 {
		fields := bson.M{}
		for _, k := range unset {
			fields[k] = ""
		}
		update = append(update, bson.E{Key: "$unset", Value: fields})
	}
	return update
}

// fromBSON turns driver types into the plain values the core works with.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromBSON(item)
		}
		return out
	case int32:
		return int64(t)
	case time.Time:
		return t.UTC()
	}
	return v
}
