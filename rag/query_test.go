package rag_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ragctl/pkg/chunk"
	. "ragctl/rag"
)

var _ = Describe("QueryEngine", func() {
	var (
		ctx      context.Context
		tempDir  string
		store    *fakeStore
		embedder *fakeEmbedder
		chat     *fakeChat
		engine   *QueryEngine
		manager  *Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tempDir, err = os.MkdirTemp("", "query_test_*")
		Expect(err).ToNot(HaveOccurred())

		store = newFakeStore()
		embedder = &fakeEmbedder{dims: 3}
		chat = &fakeChat{}
		engine = NewQueryEngine(store, embedder, chat)
		manager = NewManager(store, embedder, chunk.NewLoader("txt", chunk.NewSplitter(50, 10)))
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	insertFile := func(name, content string) {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		_, err := manager.Insert(ctx, path)
		Expect(err).ToNot(HaveOccurred())
	}

	Describe("SimilaritySearch", func() {
		It("should return an empty result for an absent collection", func() {
			matches, err := engine.SimilaritySearch(ctx, "anything")
			Expect(err).ToNot(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("should return matches with provenance and score", func() {
			insertFile("a.txt", "vector search content")

			matches, err := engine.SimilaritySearch(ctx, "content")
			Expect(err).ToNot(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].Text).To(Equal("vector search content"))
			Expect(matches[0].Source).To(ContainSubstring("a.txt"))
		})

		It("should cap results at the default top K", func() {
			for i := 0; i < 15; i++ {
				insertFile(string(rune('a'+i))+".txt", "short entry")
			}

			matches, err := engine.SimilaritySearch(ctx, "entry")
			Expect(err).ToNot(HaveOccurred())
			Expect(matches).To(HaveLen(DefaultTopK))
		})
	})

	Describe("ConversationalQuery", func() {
		It("should answer with retrieved context", func() {
			insertFile("a.txt", "facts about deployments")

			session := NewSession()
			answer, err := engine.ConversationalQuery(ctx, session, "how do I deploy?")
			Expect(err).ToNot(HaveOccurred())
			Expect(answer).To(Equal("answer-1"))
			Expect(chat.contexts[0]).To(ContainElement("facts about deployments"))
		})

		It("should append each exchange to the session", func() {
			insertFile("a.txt", "session memory content")

			session := NewSession()
			_, err := engine.ConversationalQuery(ctx, session, "first question")
			Expect(err).ToNot(HaveOccurred())
			_, err = engine.ConversationalQuery(ctx, session, "second question")
			Expect(err).ToNot(HaveOccurred())

			Expect(session.Turns()).To(HaveLen(2))
			Expect(session.Turns()[0].Question).To(Equal("first question"))
			Expect(session.Turns()[1].Answer).To(Equal("answer-2"))

			// The second call sees the first exchange as history.
			Expect(chat.historyLens).To(Equal([]int{0, 1}))
		})

		It("should work against an empty collection", func() {
			session := NewSession()
			answer, err := engine.ConversationalQuery(ctx, session, "anything indexed?")
			Expect(err).ToNot(HaveOccurred())
			Expect(answer).To(Equal("answer-1"))
			Expect(chat.contexts[0]).To(BeEmpty())
		})
	})
})
