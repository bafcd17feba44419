/*
Package mongostore provides an implementation of store.ModelStore that keeps
encoded models on a MongoDB collection.
*/
package mongostore

import (
	"context"
	"fmt"
	"time"

	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/pbanos/ptree"
	"github.com/pbanos/ptree/store"
)

const (
	// DefaultCollection is the collection models are stored in.
	DefaultCollection = "models"
	dialTimeout       = 10 * time.Second
)

type document struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type mongoStore struct {
	session    *mgo.Session
	collection string
	codec      store.Codec
}

/*
New takes a MongoDB session, a collection name and a codec and returns a
store.ModelStore that keeps models on that collection of the session's
default database.
*/
func New(session *mgo.Session, collection string, codec store.Codec) store.ModelStore {
	return &mongoStore{session, collection, codec}
}

/*
Open takes a context and a MongoDB URL like mongodb://host:port/database and
returns a store.ModelStore on its database, encoding models with msgpack, or
an error if the database cannot be reached.
*/
func Open(ctx context.Context, rawurl string) (store.ModelStore, error) {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	session, err := mgo.DialWithTimeout(rawurl, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %v", err)
	}
	return New(session, DefaultCollection, store.Msgpack), nil
}

func (ms *mongoStore) Create(ctx context.Context, m *ptree.Model) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.ID = store.NewID()
		data, err := ms.codec.Encode(m)
		if err != nil {
			return fmt.Errorf("creating model: encoding model: %v", err)
		}
		err = ms.c().Insert(&document{ID: m.ID, Data: data, UpdatedAt: time.Now()})
		if err == nil {
			return nil
		}
		if !mgo.IsDup(err) {
			return fmt.Errorf("creating model in mongodb: %v", err)
		}
	}
}

func (ms *mongoStore) Get(ctx context.Context, id string) (*ptree.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := &document{}
	err := ms.c().FindId(id).One(doc)
	if err == mgo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving model %q: %v", id, err)
	}
	m, err := ms.codec.Decode(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("retrieving model %q: decoding: %v", id, err)
	}
	return m, nil
}

func (ms *mongoStore) Store(ctx context.Context, m *ptree.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := ms.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("storing model %q: encoding model: %v", m.ID, err)
	}
	err = ms.c().UpdateId(m.ID, bson.M{"$set": bson.M{"data": data, "updatedAt": time.Now()}})
	if err != nil {
		return fmt.Errorf("storing model %q in mongodb: %v", m.ID, err)
	}
	return nil
}

func (ms *mongoStore) Delete(ctx context.Context, m *ptree.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := ms.c().RemoveId(m.ID)
	if err != nil && err != mgo.ErrNotFound {
		return fmt.Errorf("deleting model %q from mongodb: %v", m.ID, err)
	}
	return nil
}

func (ms *mongoStore) Close(ctx context.Context) error {
	ms.session.Close()
	return nil
}

func (ms *mongoStore) c() *mgo.Collection {
	return ms.session.DB("").C(ms.collection)
}
