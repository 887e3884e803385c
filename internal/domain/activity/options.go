package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	Actor        string
	Account      *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
