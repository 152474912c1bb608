package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) ListSessions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.logger.Info(ctx, "List sessions request", "subject", SubjectFromContext(ctx))

	infos := s.source.Snapshot()
	sessions := make([]any, 0, len(infos))
	for _, in := range infos {
		sessions = append(sessions, map[string]any{
			"id":            in.ID.String(),
			"username":      in.Username,
			"host":          in.Host,
			"port":          in.Port,
			"listener_port": in.ListenerPort,
			"started_at":    in.StartedAt.UTC().Format(time.RFC3339),
		})
	}

	out, err := structpb.NewStruct(map[string]any{"sessions": sessions})
	if err != nil {
		s.logger.Error(ctx, "encode sessions", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.source.Stats()

	out, err := structpb.NewStruct(map[string]any{
		"active_sessions":  st.ActiveSessions,
		"known_users":      st.KnownUsers,
		"pending_messages": st.PendingMessages,
		"login_blocked":    st.LoginBlocked,
	})
	if err != nil {
		s.logger.Error(ctx, "encode stats", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}
