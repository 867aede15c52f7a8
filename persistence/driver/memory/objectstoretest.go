package memory

// FailOnGet configures s to return err from every call to Get() with a key
// that satisfies the given predicate function.
func FailOnGet(s *ObjectStore, pred func(key string) bool, err error) {
	s.m.Lock()
	defer s.m.Unlock()

	s.beforeGet = func(key string) error {
		if pred(key) {
			return err
		}
		return nil
	}
}

// FailOnPut configures s to return err from every call to Put() with a key
// that satisfies the given predicate function.
//
// The error is returned before the object is actually stored.
func FailOnPut(s *ObjectStore, pred func(key string) bool, err error) {
	s.m.Lock()
	defer s.m.Unlock()

	s.beforePut = func(key string) error {
		if pred(key) {
			return err
		}
		return nil
	}
}
