package ribmock

import (
	"testing"

	"go.uber.org/mock/gomock"
)

func TestMockStoreRecordsExpectedPut(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)

	store.EXPECT().Put("/dif/management/flow-allocator/qos-cubes/1", gomock.Any()).Return(nil)

	if err := store.Put("/dif/management/flow-allocator/qos-cubes/1", "reliable"); err != nil {
		t.Fatal(err)
	}
}

func TestMockStoreGetReturnsConfiguredValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)

	store.EXPECT().Get("/dif/name").Return("test.DIF", nil)

	got, err := store.Get("/dif/name")
	if err != nil {
		t.Fatal(err)
	}
	if got != "test.DIF" {
		t.Fatalf("got %v, want test.DIF", got)
	}
}
