package dto

// UserSignupRequestDTO is the form body of /register.
// bcrypt only accepts passwords up to 72 bytes.
type UserSignupRequestDTO struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required,maxbytes=72"`
}

type MessageResponseDTO struct {
	Message string `json:"message"`
}

type UserListResponseDTO struct {
	Users []string `json:"users"`
}
