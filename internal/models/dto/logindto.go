package dto

type LoginRequestDTO struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
}

type ChangePasswordRequestDTO struct {
	Username    string `mapstructure:"username" validate:"required"`
	OldPassword string `mapstructure:"old_password" validate:"required"`
	NewPassword string `mapstructure:"new_password" validate:"required,maxbytes=72"`
}
