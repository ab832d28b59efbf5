package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// toDoc round-trips v through BSON so it can be served by the mock server.
func toDoc(t *testing.T, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return doc
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func sentCommand(mt *mtest.T, name string) bson.Raw {
	mt.Helper()
	ev := mt.GetStartedEvent()
	if ev == nil {
		mt.Fatalf("no %s command was sent", name)
	}
	if ev.CommandName != name {
		mt.Fatalf("expected %s, got %s", name, ev.CommandName)
	}
	return ev.Command
}

// firstEntry returns the first document of an array field of a command.
func firstEntry(mt *mtest.T, cmd bson.Raw, field string) bson.Raw {
	mt.Helper()
	values, err := cmd.Lookup(field).Array().Values()
	if err != nil || len(values) == 0 {
		mt.Fatalf("command has no %s: %v", field, err)
	}
	return values[0].Document()
}

func TestMongoRentals(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("find overlapping", func(mt *mtest.T) {
		repo := &mongoRentals{coll: mt.Coll}
		machineID, exclude := primitive.NewObjectID(), primitive.NewObjectID()
		booked := models.Rental{ID: primitive.NewObjectID(), MachineID: machineID, Status: models.StatusActive, StartTime: start, EndTime: start.Add(2 * time.Hour)}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, toDoc(t, booked)))
		got, err := repo.FindOverlapping(ctx, machineID, start.Add(time.Hour), start.Add(3*time.Hour),
			[]models.RentalStatus{models.StatusPending, models.StatusActive}, exclude)
		if err != nil || got.ID != booked.ID {
			mt.Fatalf("expected the booked rental, got %+v %v", got, err)
		}

		cmd := sentCommand(mt, "find")
		if id := cmd.Lookup("filter", "machineId").ObjectID(); id != machineID {
			mt.Fatalf("filter on wrong machine %s", id.Hex())
		}
		if statuses, _ := cmd.Lookup("filter", "status", "$in").Array().Values(); len(statuses) != 2 {
			mt.Fatalf("expected two blocking statuses, got %v", statuses)
		}
		if lt := cmd.Lookup("filter", "startTime", "$lt").Time(); !lt.Equal(start.Add(3 * time.Hour)) {
			mt.Fatalf("startTime bound should be the requested end, got %s", lt)
		}
		if gt := cmd.Lookup("filter", "endTime", "$gt").Time(); !gt.Equal(start.Add(time.Hour)) {
			mt.Fatalf("endTime bound should be the requested start, got %s", gt)
		}
		if ne := cmd.Lookup("filter", "_id", "$ne").ObjectID(); ne != exclude {
			mt.Fatalf("excluded rental not in filter: %s", ne.Hex())
		}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))
		if _, err := repo.FindOverlapping(ctx, machineID, start, start.Add(time.Hour), nil, primitive.NilObjectID); !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected not found, got %v", err)
		}
		cmd = sentCommand(mt, "find")
		if _, err := cmd.LookupErr("filter", "_id"); err == nil {
			mt.Fatal("zero exclude id should not be filtered on")
		}
	})

	mt.Run("update status", func(mt *mtest.T) {
		repo := &mongoRentals{coll: mt.Coll}
		rental := models.Rental{ID: primitive.NewObjectID(), Status: models.StatusActive, StartTime: start, EndTime: start.Add(time.Hour)}

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(t, rental)}))
		got, err := repo.UpdateStatus(ctx, rental.ID, models.StatusPending, models.StatusActive)
		if err != nil || got.Status != models.StatusActive {
			mt.Fatalf("update: %+v %v", got, err)
		}
		cmd := sentCommand(mt, "findAndModify")
		if from := cmd.Lookup("query", "status").StringValue(); from != string(models.StatusPending) {
			mt.Fatalf("update must be conditional on the current status, got %q", from)
		}
		if to := cmd.Lookup("update", "$set", "status").StringValue(); to != string(models.StatusActive) {
			mt.Fatalf("unexpected target status %q", to)
		}
		if !cmd.Lookup("new").Boolean() {
			mt.Fatal("expected the updated document to be returned")
		}
	})

	mt.Run("stale and missing", func(mt *mtest.T) {
		repo := &mongoRentals{coll: mt.Coll}
		rental := models.Rental{ID: primitive.NewObjectID(), Status: models.StatusCompleted}

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, toDoc(t, rental)),
		)
		if _, err := repo.UpdateStatus(ctx, rental.ID, models.StatusPending, models.StatusActive); !errors.Is(err, ErrStale) {
			mt.Fatalf("expected stale, got %v", err)
		}

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch),
		)
		if _, err := repo.Extend(ctx, rental.ID, start, 10, 1); !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected not found, got %v", err)
		}
	})

	mt.Run("extend", func(mt *mtest.T) {
		repo := &mongoRentals{coll: mt.Coll}
		rental := models.Rental{ID: primitive.NewObjectID(), Status: models.StatusActive, TotalHours: 3, TotalPrice: 150}

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(t, rental)}))
		if _, err := repo.Extend(ctx, rental.ID, start.Add(3*time.Hour), 50, 1); err != nil {
			mt.Fatalf("extend: %v", err)
		}
		cmd := sentCommand(mt, "findAndModify")
		if s := cmd.Lookup("query", "status").StringValue(); s != string(models.StatusActive) {
			mt.Fatalf("only active rentals can be extended, filter had %q", s)
		}
		if price := cmd.Lookup("update", "$inc", "totalPrice").Double(); price != 50 {
			mt.Fatalf("expected price increment 50, got %v", price)
		}
		if hours := cmd.Lookup("update", "$inc", "totalHours").Double(); hours != 1 {
			mt.Fatalf("expected hours increment 1, got %v", hours)
		}
	})
}

func TestMongoMachinesAddRating(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("pipeline update", func(mt *mtest.T) {
		repo := &mongoMachines{coll: mt.Coll}
		rating := models.Rating{RenterID: primitive.NewObjectID(), Rating: 4}
		machine := models.Machine{ID: primitive.NewObjectID(), Name: "Pump", Ratings: []models.Rating{rating}, AverageRating: 4}

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(t, machine)}))
		got, err := repo.AddRating(ctx, machine.ID, rating)
		if err != nil || got.AverageRating != 4 {
			mt.Fatalf("add rating: %+v %v", got, err)
		}

		cmd := sentCommand(mt, "findAndModify")
		stages, err := cmd.Lookup("update").Array().Values()
		if err != nil || len(stages) != 2 {
			mt.Fatalf("expected a two-stage pipeline, got %v %v", stages, err)
		}
		if _, err := stages[0].Document().LookupErr("$set", "ratings", "$concatArrays"); err != nil {
			mt.Fatalf("first stage should append the rating: %v", err)
		}
		if avg := stages[1].Document().Lookup("$set", "averageRating", "$avg").StringValue(); avg != "$ratings.rating" {
			mt.Fatalf("second stage should average the ratings, got %q", avg)
		}
	})

	mt.Run("missing machine", func(mt *mtest.T) {
		repo := &mongoMachines{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		if _, err := repo.AddRating(ctx, primitive.NewObjectID(), models.Rating{Rating: 5}); !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestMongoChatsMarkSeen(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("adds reader once", func(mt *mtest.T) {
		repo := &mongoChats{coll: mt.Coll}
		rentalID, userID := primitive.NewObjectID(), primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}, bson.E{Key: "nModified", Value: 2}))
		n, err := repo.MarkSeen(context.Background(), rentalID, userID)
		if err != nil || n != 2 {
			mt.Fatalf("expected 2 updated, got %d %v", n, err)
		}

		stmt := firstEntry(mt, sentCommand(mt, "update"), "updates")
		if !stmt.Lookup("multi").Boolean() {
			mt.Fatal("expected a multi-document update")
		}
		if id := stmt.Lookup("q", "seenBy", "$ne").ObjectID(); id != userID {
			mt.Fatalf("messages already seen should be skipped, filter had %s", id.Hex())
		}
		if id := stmt.Lookup("u", "$addToSet", "seenBy").ObjectID(); id != userID {
			mt.Fatalf("reader not added to seenBy: %s", id.Hex())
		}
	})
}

func TestMongoUsersDuplicateEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate key", func(mt *mtest.T) {
		repo := &mongoUsers{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))
		err := repo.Create(context.Background(), &models.User{Name: "Ravi", Email: " Ravi@Example.com "})
		if !errors.Is(err, ErrDuplicate) {
			mt.Fatalf("expected duplicate, got %v", err)
		}
		doc := firstEntry(mt, sentCommand(mt, "insert"), "documents")
		if email := doc.Lookup("email").StringValue(); email != "ravi@example.com" {
			mt.Fatalf("email should be normalised before insert, got %q", email)
		}
	})
}
