package rag_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ragctl/pkg/chunk"
	. "ragctl/rag"
)

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		tempDir  string
		store    *fakeStore
		embedder *fakeEmbedder
		manager  *Manager
	)

	newManager := func() *Manager {
		loader := chunk.NewLoader("txt", chunk.NewSplitter(50, 10))
		return NewManager(store, embedder, loader)
	}

	writeFile := func(name, content string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tempDir, err = os.MkdirTemp("", "manager_test_*")
		Expect(err).ToNot(HaveOccurred())

		store = newFakeStore()
		embedder = &fakeEmbedder{dims: 3}
		manager = newManager()
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("EnsureCollection", func() {
		It("should never create the collection", func() {
			Expect(manager.EnsureCollection(ctx)).To(Succeed())
			exists, _ := store.Exists(ctx)
			Expect(exists).To(BeFalse())
		})
	})

	Describe("Insert", func() {
		It("should insert every chunk of a file", func() {
			path := writeFile("a.txt", strings.Repeat("words in the indexed file ", 10))
			n, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(BeNumerically(">", 1))
			Expect(store.countFor(path)).To(Equal(n))
		})

		It("should duplicate entries on a second insert of the same file", func() {
			path := writeFile("a.txt", strings.Repeat("duplicated content ", 10))

			n, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			_, err = manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())

			Expect(store.countFor(path)).To(Equal(2 * n))
		})

		It("should ingest every matching file of a directory", func() {
			writeFile("a.txt", "first short file")
			writeFile("b.txt", "second short file")
			writeFile("c.txt", "third short file")

			n, err := manager.Insert(ctx, tempDir)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(3))

			count, _ := store.Count(ctx)
			Expect(count).To(Equal(int64(3)))
		})

		It("should fail for a missing path", func() {
			_, err := manager.Insert(ctx, filepath.Join(tempDir, "missing.txt"))
			Expect(err).To(MatchError(chunk.ErrNotFound))
		})

		It("should fail for an unsupported file type", func() {
			loader := chunk.NewLoader("docx", chunk.NewSplitter(50, 10))
			m := NewManager(store, embedder, loader)
			_, err := m.Insert(ctx, writeFile("a.txt", "content"))
			Expect(err).To(MatchError(chunk.ErrUnsupportedType))
		})
	})

	Describe("Delete", func() {
		It("should report zero deletions for an unknown source", func() {
			n, err := manager.Delete(ctx, "nonexistent.pdf")
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(0))
		})

		It("should delete every entry of a source and report the count", func() {
			path := writeFile("a.txt", strings.Repeat("to be deleted ", 10))
			inserted, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())

			deleted, err := manager.Delete(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(deleted).To(Equal(inserted))
			Expect(store.countFor(path)).To(Equal(0))

			again, err := manager.Delete(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(again).To(Equal(0))
		})

		It("should treat different spellings of one path as different sources", func() {
			path := writeFile("a.txt", "spelled content")
			_, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())

			n, err := manager.Delete(ctx, tempDir+"/./a.txt")
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(0))
			Expect(store.countFor(path)).ToNot(Equal(0))
		})

		It("should surface a partial deletion when the loop aborts", func() {
			path := writeFile("a.txt", strings.Repeat("partial delete case ", 15))
			inserted, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(inserted).To(BeNumerically(">", 2))

			store.failDeleteAfter = 2
			deleted, err := manager.Delete(ctx, path)
			Expect(err).To(HaveOccurred())
			Expect(deleted).To(Equal(2))
			Expect(store.countFor(path)).To(Equal(inserted - 2))
		})
	})

	Describe("Update", func() {
		It("should leave exactly the latest chunk count for the source", func() {
			path := writeFile("a.txt", strings.Repeat("original content here ", 10))
			_, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())

			Expect(os.WriteFile(path, []byte("much shorter now"), 0644)).To(Succeed())
			n, err := manager.Update(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(store.countFor(path)).To(Equal(n))
		})

		It("should insert when the source was never indexed", func() {
			path := writeFile("a.txt", "fresh content")
			n, err := manager.Update(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(store.countFor(path)).To(Equal(1))
		})
	})

	Describe("Drop", func() {
		It("should be idempotent", func() {
			path := writeFile("a.txt", "droppable")
			_, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())

			Expect(manager.Drop(ctx)).To(Succeed())
			Expect(manager.Drop(ctx)).To(Succeed())

			count, _ := store.Count(ctx)
			Expect(count).To(BeZero())
		})
	})

	Describe("Load", func() {
		It("should drop before inserting", func() {
			old := writeFile("old.txt", "old content")
			_, err := manager.Insert(ctx, old)
			Expect(err).ToNot(HaveOccurred())

			fresh := writeFile("fresh.txt", "fresh content")
			n, err := manager.Load(ctx, fresh)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(1))

			Expect(store.countFor(old)).To(Equal(0))
			count, _ := store.Count(ctx)
			Expect(count).To(Equal(int64(1)))
		})

		It("should reset the inferred schema when the embedding model changes", func() {
			path := writeFile("a.txt", "dimensional content")
			_, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())

			// A different model produces a different dimensionality. A
			// plain insert must fail against the existing schema; Load
			// succeeds because the drop precedes the insert.
			embedder.dims = 5
			_, err = manager.Insert(ctx, path)
			Expect(err).To(HaveOccurred())

			n, err := manager.Load(ctx, path)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	Describe("Stats", func() {
		It("should report the collection row count", func() {
			path := writeFile("a.txt", "counted")
			_, err := manager.Insert(ctx, path)
			Expect(err).ToNot(HaveOccurred())

			count, err := manager.Stats(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})
	})
})
