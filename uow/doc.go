// Package uow scopes a database session to a function call.
//
//	work, _ := uow.New(database.NewSessionFactory(db), func(s *database.Session) (repository.Repository[Article], error) {
//		return repository.NewRepository[Article](s, repository.DefaultConfig())
//	})
//	err := work.Do(ctx, func(ctx context.Context, articles repository.Repository[Article]) error {
//		_, err := articles.Create(ctx, types.Data{"title": "hello"})
//		return err
//	})
package uow
