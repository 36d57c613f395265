package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDiskRuleStore_CreateAndRecover(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	def := RuleDefinition{
		Namespace:        "checkout",
		Name:             "high-value-order",
		FactType:         "order",
		Condition:        `amount > 1000`,
		ViolationMessage: "order exceeds the unreviewed threshold",
		Enabled:          true,
	}

	err = store.Create(def)
	require.NoError(t, err)

	assert.Equal(t, 1, mockFS.WriteCalls, "Should have written to temp file")
	assert.Equal(t, 1, mockFS.RenameCalls, "Should have renamed temp file")
	assert.True(t, mockFS.FileExists("/data/rules.yaml"), "Rules file should exist")

	// Simulate restart: create new store with same filesystem
	recoveredStore, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	assert.Equal(t, 1, recoveredStore.Count(), "Should have recovered 1 rule definition")

	recovered, err := recoveredStore.Get(def.ID())
	require.NoError(t, err)
	assert.Equal(t, def.FactType, recovered.FactType)
	assert.Equal(t, def.Condition, recovered.Condition)
	assert.Equal(t, def.ViolationMessage, recovered.ViolationMessage)
}

func TestDiskRuleStore_Update(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	def := RuleDefinition{Namespace: "checkout", Name: "rule", FactType: "order", Condition: "amount > 1000", Enabled: true}
	require.NoError(t, store.Create(def))

	updated := def
	updated.Condition = "amount > 5000"
	updated.ViolationMessage = "raised threshold"

	require.NoError(t, store.Update(updated))

	data, exists := mockFS.GetFile("/data/rules.yaml")
	require.True(t, exists)

	var persisted map[string]RuleDefinition
	require.NoError(t, yaml.Unmarshal(data, &persisted))

	got := persisted[def.ID()]
	assert.Equal(t, "amount > 5000", got.Condition)
	assert.Equal(t, "raised threshold", got.ViolationMessage)
}

func TestDiskRuleStore_Delete(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	def1 := RuleDefinition{Namespace: "checkout", Name: "rule1", FactType: "order", Condition: "amount > 100"}
	def2 := RuleDefinition{Namespace: "checkout", Name: "rule2", FactType: "order", Condition: "amount > 200"}

	require.NoError(t, store.Create(def1))
	require.NoError(t, store.Create(def2))
	assert.Equal(t, 2, store.Count())

	require.NoError(t, store.Delete(def1.ID()))
	assert.Equal(t, 1, store.Count())

	data, exists := mockFS.GetFile("/data/rules.yaml")
	require.True(t, exists)

	var persisted map[string]RuleDefinition
	require.NoError(t, yaml.Unmarshal(data, &persisted))

	assert.Len(t, persisted, 1)
	assert.Contains(t, persisted, def2.ID())
	assert.NotContains(t, persisted, def1.ID())
}

func TestDiskRuleStore_AtomicWrite(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	def := RuleDefinition{Namespace: "checkout", Name: "rule", FactType: "order", Condition: "amount > 100"}
	require.NoError(t, store.Create(def))

	assert.False(t, mockFS.FileExists("/data/rules.yaml.tmp"), "Temp file should not exist after rename")
	assert.True(t, mockFS.FileExists("/data/rules.yaml"), "Final file should exist")
}

func TestDiskRuleStore_WriteFailure(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	mockFS.WriteError = fmt.Errorf("disk full")

	def := RuleDefinition{Namespace: "checkout", Name: "rule", FactType: "order", Condition: "amount > 100"}
	err = store.Create(def)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDiskRuleStore_RenameFailure(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	mockFS.RenameError = fmt.Errorf("rename failed")

	def := RuleDefinition{Namespace: "checkout", Name: "rule", FactType: "order", Condition: "amount > 100"}
	err = store.Create(def)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rename failed")
}

func TestDiskRuleStore_CorruptedFile(t *testing.T) {
	mockFS := NewMockFileSystem()

	mockFS.WriteFile("/data/rules.yaml", []byte("not: [valid: yaml: here"), 0644)

	_, err := NewDiskRuleStoreWithFS("/data", mockFS)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load rule definitions")
}

func TestDiskRuleStore_EmptyFile(t *testing.T) {
	mockFS := NewMockFileSystem()

	mockFS.WriteFile("/data/rules.yaml", []byte(""), 0644)

	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestDiskRuleStore_FreshStart(t *testing.T) {
	mockFS := NewMockFileSystem()

	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestDiskRuleStore_DuplicateCreate(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	def := RuleDefinition{Namespace: "checkout", Name: "rule", FactType: "order", Condition: "amount > 100"}

	require.NoError(t, store.Create(def))

	err = store.Create(def)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestDiskRuleStore_UpdateNonExistent(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	def := RuleDefinition{Namespace: "checkout", Name: "nonexistent", FactType: "order", Condition: "amount > 100"}

	err = store.Update(def)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDiskRuleStore_DeleteNonExistent(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	err = store.Delete("checkout.nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDiskRuleStore_List(t *testing.T) {
	mockFS := NewMockFileSystem()
	store, err := NewDiskRuleStoreWithFS("/data", mockFS)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		def := RuleDefinition{
			Namespace: "checkout",
			Name:      fmt.Sprintf("rule%d", i),
			FactType:  "order",
			Condition: "amount > 100",
		}
		require.NoError(t, store.Create(def))
	}

	defs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, defs, 5)
}

func BenchmarkDiskRuleStore_Create(b *testing.B) {
	mockFS := NewMockFileSystem()
	store, _ := NewDiskRuleStoreWithFS("/data", mockFS)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		def := RuleDefinition{
			Namespace: "checkout",
			Name:      fmt.Sprintf("rule%d", i),
			FactType:  "order",
			Condition: "amount > 100",
		}
		store.Create(def)
	}
}

func BenchmarkDiskRuleStore_Recovery(b *testing.B) {
	mockFS := NewMockFileSystem()
	store, _ := NewDiskRuleStoreWithFS("/data", mockFS)

	for i := 0; i < 100; i++ {
		def := RuleDefinition{
			Namespace: "checkout",
			Name:      fmt.Sprintf("rule%d", i),
			FactType:  "order",
			Condition: "amount > 100",
		}
		store.Create(def)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewDiskRuleStoreWithFS("/data", mockFS)
	}
}
